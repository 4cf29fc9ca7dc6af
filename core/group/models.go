package group

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/newstandard/academy/core"
)

type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	LeaderID  string    `json:"leader_id,omitempty"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type Member struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

type NewGroup struct {
	Name     string `json:"name" validate:"required"`
	LeaderID string `json:"leader_id"`
}

func (ng *NewGroup) Validate(validate *validator.Validate) error {
	ng.Name = core.CleanString(ng.Name)
	ng.LeaderID = core.CleanString(ng.LeaderID)
	return validate.Struct(ng)
}

type UpdateGroup struct {
	Name     string  `json:"name"`
	LeaderID *string `json:"leader_id"`
}

func (ug *UpdateGroup) Validate(orig Group) {
	if name := core.CleanString(ug.Name); name != "" {
		ug.Name = name
	} else {
		ug.Name = orig.Name
	}
	if ug.LeaderID != nil {
		id := core.CleanString(*ug.LeaderID)
		ug.LeaderID = &id
	}
}

type MembersRequest struct {
	UserIDs []string `json:"user_ids" validate:"dive,required"`
}

func (mr *MembersRequest) Validate(validate *validator.Validate) error {
	for i := range mr.UserIDs {
		mr.UserIDs[i] = core.CleanString(mr.UserIDs[i])
	}
	return validate.Struct(mr)
}
