package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/newstandard/academy/core"
)

type Course struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ThumbnailURL string    `json:"thumbnail_url"`
	IsPublished  bool      `json:"is_published"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

type Module struct {
	ID         string `json:"id"`
	CourseID   string `json:"course_id"`
	Title      string `json:"title"`
	OrderIndex int    `json:"order_index"`
}

type Lesson struct {
	ID              string `json:"id"`
	ModuleID        string `json:"module_id"`
	CourseID        string `json:"course_id"`
	Title           string `json:"title"`
	VideoURL        string `json:"video_url"`
	DurationSeconds int    `json:"duration_seconds"`
	OrderIndex      int    `json:"order_index"`
}

type Progress struct {
	UserID      string    `json:"user_id"`
	LessonID    string    `json:"lesson_id"`
	Completed   bool      `json:"completed"`
	CompletedAt time.Time `json:"completed_at"` // UTC
}

// QuizRef is the part of a quiz a course outline shows.
type QuizRef struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	LessonID    string `json:"lesson_id,omitempty"`
	ModuleID    string `json:"module_id,omitempty"`
	IsFinalExam bool   `json:"is_final_exam"`
}

type Summary struct {
	Course
	TotalLessons     int `json:"total_lessons"`
	CompletedLessons int `json:"completed_lessons"`
	Progress         int `json:"progress"` // percentage
}

type (
	LessonOutline struct {
		Lesson
		Completed bool      `json:"completed"`
		Quizzes   []QuizRef `json:"quizzes"`
	}

	ModuleOutline struct {
		Module
		Lessons []LessonOutline `json:"lessons"`
		Quizzes []QuizRef       `json:"quizzes"`
	}

	Outline struct {
		Summary
		Modules     []ModuleOutline `json:"modules"`
		FinalExamID string          `json:"final_exam_id,omitempty"`
	}
)

// CompletionResult reports a lesson completion and whether it completed the course.
type CompletionResult struct {
	LessonID          string `json:"lesson_id"`
	CourseCompleted   bool   `json:"course_completed"`
	CertificateNumber string `json:"certificate_number,omitempty"`
}

type NewCourse struct {
	Title        string `json:"title" validate:"required"`
	Description  string `json:"description"`
	ThumbnailURL string `json:"thumbnail_url" validate:"omitempty,url"`
	IsPublished  bool   `json:"is_published"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.ThumbnailURL = core.CleanString(nc.ThumbnailURL)
	return validate.Struct(nc)
}

type UpdateCourse struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	ThumbnailURL string `json:"thumbnail_url" validate:"omitempty,url"`
	IsPublished  *bool  `json:"is_published"`
}

func (uc *UpdateCourse) Validate(orig Course, validate *validator.Validate) error {
	if title := core.CleanString(uc.Title); title != "" {
		uc.Title = title
	} else {
		uc.Title = orig.Title
	}
	uc.Description = core.CleanString(uc.Description)
	if uc.Description == "" {
		uc.Description = orig.Description
	}
	uc.ThumbnailURL = core.CleanString(uc.ThumbnailURL)
	if uc.ThumbnailURL == "" {
		uc.ThumbnailURL = orig.ThumbnailURL
	}
	return validate.Struct(uc)
}

type NewModule struct {
	CourseID   string `json:"course_id" validate:"required"`
	Title      string `json:"title" validate:"required"`
	OrderIndex int    `json:"order_index" validate:"min=0"`
}

func (nm *NewModule) Validate(validate *validator.Validate) error {
	nm.CourseID = core.CleanString(nm.CourseID)
	nm.Title = core.CleanString(nm.Title)
	return validate.Struct(nm)
}

type NewLesson struct {
	ModuleID        string `json:"module_id" validate:"required"`
	Title           string `json:"title" validate:"required"`
	VideoURL        string `json:"video_url" validate:"omitempty,url"`
	DurationSeconds int    `json:"duration_seconds" validate:"min=0"`
	OrderIndex      int    `json:"order_index" validate:"min=0"`
}

func (nl *NewLesson) Validate(validate *validator.Validate) error {
	nl.ModuleID = core.CleanString(nl.ModuleID)
	nl.Title = core.CleanString(nl.Title)
	nl.VideoURL = core.CleanString(nl.VideoURL)
	return validate.Struct(nl)
}

type AccessRequest struct {
	UserTypes []string `json:"user_types" validate:"dive,oneof=employee client"`
}

func (ar *AccessRequest) Validate(validate *validator.Validate) error {
	for i := range ar.UserTypes {
		ar.UserTypes[i] = core.CleanString(ar.UserTypes[i], true /* lower */)
	}
	return validate.Struct(ar)
}
