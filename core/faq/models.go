package faq

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/newstandard/academy/core"
)

const PDFContentType = "application/pdf"

type FAQ struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	TargetAudience string    `json:"target_audience"`
	ParentID       string    `json:"parent_id,omitempty"`
	IsSection      bool      `json:"is_section"`
	PDFObject      string    `json:"-"`
	HasDocument    bool      `json:"has_document"`
	OrderIndex     int       `json:"order_index"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

// sectionID is the section an entry's access is decided by.
func (f FAQ) sectionID() string {
	if f.IsSection || f.ParentID == "" {
		return f.ID
	}
	return f.ParentID
}

type Note struct {
	ID         string    `json:"id"`
	FAQID      string    `json:"faq_id"`
	UserID     string    `json:"user_id"`
	AuthorName string    `json:"author_name"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at"` // UTC
}

type Document struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type NewFAQ struct {
	Title          string `json:"title" validate:"required"`
	Description    string `json:"description"`
	TargetAudience string `json:"target_audience"`
	ParentID       string `json:"parent_id"`
	IsSection      bool   `json:"is_section"`
	OrderIndex     int    `json:"order_index" validate:"min=0"`
}

func (nf *NewFAQ) Validate(validate *validator.Validate) error {
	nf.Title = core.CleanString(nf.Title)
	nf.Description = core.CleanString(nf.Description)
	nf.TargetAudience = core.CleanString(nf.TargetAudience)
	nf.ParentID = core.CleanString(nf.ParentID)
	if err := validate.Struct(nf); err != nil {
		return err
	}
	if nf.IsSection && nf.ParentID != "" {
		return core.NewFieldError("parent_id", errNestedSection)
	}
	if !nf.IsSection && nf.ParentID == "" {
		return core.NewFieldError("parent_id", errEntryWithoutSection)
	}
	return nil
}

type UpdateFAQ struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	TargetAudience string `json:"target_audience"`
	OrderIndex     *int   `json:"order_index" validate:"omitempty,min=0"`
}

func (uf *UpdateFAQ) Validate(orig FAQ, validate *validator.Validate) error {
	if v := core.CleanString(uf.Title); v != "" {
		uf.Title = v
	} else {
		uf.Title = orig.Title
	}
	if v := core.CleanString(uf.Description); v != "" {
		uf.Description = v
	} else {
		uf.Description = orig.Description
	}
	if v := core.CleanString(uf.TargetAudience); v != "" {
		uf.TargetAudience = v
	} else {
		uf.TargetAudience = orig.TargetAudience
	}
	return validate.Struct(uf)
}

type NoteRequest struct {
	Content string `json:"content" validate:"required,max=5000"`
}

func (nr *NoteRequest) Validate(validate *validator.Validate) error {
	nr.Content = core.CleanString(nr.Content)
	return validate.Struct(nr)
}

type SectionAccessRequest struct {
	GroupIDs []string `json:"group_ids" validate:"dive,required"`
}

func (sr *SectionAccessRequest) Validate(validate *validator.Validate) error {
	for i := range sr.GroupIDs {
		sr.GroupIDs[i] = core.CleanString(sr.GroupIDs[i])
	}
	return validate.Struct(sr)
}
