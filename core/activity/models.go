package activity

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Actions
const (
	ActionView   = "VIEW"
	ActionInsert = "INSERT"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// Tables
const (
	TableCourses  = "courses"
	TableFAQs     = "faqs"
	TableFAQNotes = "faq_notes"
)

var (
	AllActions = []string{ActionView, ActionInsert, ActionUpdate, ActionDelete}
	AllTables  = []string{TableCourses, TableFAQs, TableFAQNotes}
)

type Log struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	UserName    string    `json:"user_name,omitempty"`
	Action      string    `json:"action"`
	TableName   string    `json:"table_name"`
	RecordID    string    `json:"record_id"`
	Description string    `json:"description"`
	OldData     null.JSON `json:"old_data"`
	NewData     null.JSON `json:"new_data"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

// Entry is what callers record; data values are marshalled to JSON.
type Entry struct {
	UserID      string
	Action      string
	TableName   string
	RecordID    string
	Description string
	OldData     interface{}
	NewData     interface{}
}

type QueryFilter struct {
	Action    string    `query:"action" validate:"omitempty,oneof=VIEW INSERT UPDATE DELETE"`
	TableName string    `query:"table" validate:"omitempty,oneof=courses faqs faq_notes"`
	UserID    string    `query:"user_id"`
	From      time.Time `query:"from"`
	To        time.Time `query:"to"`
	Limit     int       `query:"limit" validate:"min=0,max=1000"`
}
