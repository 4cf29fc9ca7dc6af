package quiz

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/newstandard/academy/core"
)

// MaxAttempts is the number of failed attempts after which a learner's progress is reset.
const MaxAttempts = 2

// Attempt states per (user, quiz).
const (
	StateNotAttempted   = "not_attempted"
	StateAttempt1Failed = "attempt1_failed"
	StatePassed         = "passed"
)

type ScopeKind string

const (
	ScopeLesson ScopeKind = "lesson"
	ScopeModule ScopeKind = "module"
	ScopeCourse ScopeKind = "course"
)

// Scope is the content a quiz covers; its lessons are the ones reset after too many failures.
type Scope struct {
	Kind     ScopeKind
	ID       string // lesson, module or course ID
	CourseID string
}

type Quiz struct {
	ID           string    `json:"id"`
	CourseID     string    `json:"course_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	PassingScore int       `json:"passing_score"`
	LessonID     string    `json:"lesson_id,omitempty"`
	ModuleID     string    `json:"module_id,omitempty"`
	IsFinalExam  bool      `json:"is_final_exam"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

func (q Quiz) Scope() Scope {
	switch {
	case q.LessonID != "":
		return Scope{Kind: ScopeLesson, ID: q.LessonID, CourseID: q.CourseID}
	case q.ModuleID != "":
		return Scope{Kind: ScopeModule, ID: q.ModuleID, CourseID: q.CourseID}
	default:
		return Scope{Kind: ScopeCourse, ID: q.CourseID, CourseID: q.CourseID}
	}
}

// checkScope enforces exactly one of: LessonID, ModuleID, IsFinalExam.
func (q Quiz) checkScope() error {
	n := 0
	if q.LessonID != "" {
		n++
	}
	if q.ModuleID != "" {
		n++
	}
	if q.IsFinalExam {
		n++
	}
	if n != 1 {
		return ErrInvalidScope
	}
	return nil
}

// Display types: served to learners, they never carry correctness.
type (
	OptionView struct {
		ID         string `json:"id"`
		Text       string `json:"text"`
		OrderIndex int    `json:"order_index"`
	}

	QuestionView struct {
		ID         string       `json:"id"`
		Text       string       `json:"text"`
		OrderIndex int          `json:"order_index"`
		Options    []OptionView `json:"options"`
	}

	QuizView struct {
		Quiz
		Questions []QuestionView `json:"questions"`
	}
)

// Answer key types: only ever read by the grading path.
type (
	KeyQuestion struct {
		QuestionID string
		Options    map[string]bool // option ID: is correct
	}

	AnswerKey struct {
		QuizID    string
		Questions []KeyQuestion
	}
)

type Attempt struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	QuizID         string    `json:"quiz_id"`
	Score          int       `json:"score"`
	Passed         bool      `json:"passed"`
	CorrectCount   int       `json:"correct_count"`
	TotalQuestions int       `json:"total_questions"`
	AttemptNumber  int       `json:"attempt_number"`
	CreatedAt      time.Time `json:"created_at"` // UTC
}

type Response struct {
	AttemptID        string `json:"attempt_id"`
	QuestionID       string `json:"question_id"`
	SelectedOptionID string `json:"selected_option_id"`
	IsCorrect        bool   `json:"is_correct"`
}

// Result is the grading outcome sent back to the learner.
type Result struct {
	Score             int    `json:"score"`
	Passed            bool   `json:"passed"`
	CorrectCount      int    `json:"correctCount"`
	TotalQuestions    int    `json:"totalQuestions"`
	PassingScore      int    `json:"passingScore"`
	AttemptCount      int    `json:"attemptCount"`
	AttemptID         string `json:"attemptId"`
	AttemptsRemaining int    `json:"attemptsRemaining"`
	ProgressReset     bool   `json:"progressReset"`
	CertificateNumber string `json:"certificateNumber,omitempty"`
}

type Status struct {
	QuizID            string `json:"quizId"`
	State             string `json:"state"`
	AttemptCount      int    `json:"attemptCount"`
	AttemptsRemaining int    `json:"attemptsRemaining"`
	BestScore         int    `json:"bestScore"`
	Passed            bool   `json:"passed"`
}

// Submission is the grading request body.
type Submission struct {
	QuizID  string            `json:"quizId" validate:"required"`
	Answers map[string]string `json:"answers"` // question ID: selected option ID
}

func (s *Submission) Validate(validate *validator.Validate) error {
	s.QuizID = core.CleanString(s.QuizID)
	return validate.Struct(s)
}

// NewQuiz is the authoring payload; it is the only place correctness flows in from a client.
type NewQuiz struct {
	CourseID     string        `json:"course_id" validate:"required"`
	Title        string        `json:"title" validate:"required"`
	Description  string        `json:"description"`
	PassingScore int           `json:"passing_score" validate:"min=0,max=100"`
	LessonID     string        `json:"lesson_id"`
	ModuleID     string        `json:"module_id"`
	IsFinalExam  bool          `json:"is_final_exam"`
	Questions    []NewQuestion `json:"questions" validate:"required,min=1,dive"`
}

type NewQuestion struct {
	Text    string      `json:"text" validate:"required"`
	Options []NewOption `json:"options" validate:"required,min=2,dive"`
}

type NewOption struct {
	Text      string `json:"text" validate:"required"`
	IsCorrect bool   `json:"is_correct"`
}

func (nq *NewQuiz) Validate(validate *validator.Validate) error {
	nq.Title = core.CleanString(nq.Title)
	nq.Description = core.CleanString(nq.Description)
	nq.CourseID = core.CleanString(nq.CourseID)
	nq.LessonID = core.CleanString(nq.LessonID)
	nq.ModuleID = core.CleanString(nq.ModuleID)
	for i := range nq.Questions {
		nq.Questions[i].Text = core.CleanString(nq.Questions[i].Text)
		for j := range nq.Questions[i].Options {
			nq.Questions[i].Options[j].Text = core.CleanString(nq.Questions[i].Options[j].Text)
		}
	}

	if err := validate.Struct(nq); err != nil {
		return err
	}
	if err := nq.quiz().checkScope(); err != nil {
		return core.NewFieldError("scope", err.Error())
	}
	for _, q := range nq.Questions {
		if !q.hasCorrectOption() {
			return core.NewFieldError("questions", errNoCorrectOption.Error())
		}
	}
	return nil
}

func (nq NewQuiz) quiz() Quiz {
	return Quiz{
		CourseID:     nq.CourseID,
		Title:        nq.Title,
		Description:  nq.Description,
		PassingScore: nq.PassingScore,
		LessonID:     nq.LessonID,
		ModuleID:     nq.ModuleID,
		IsFinalExam:  nq.IsFinalExam,
	}
}

func (nq NewQuestion) hasCorrectOption() bool {
	for _, o := range nq.Options {
		if o.IsCorrect {
			return true
		}
	}
	return false
}

// QuestionRecord and OptionRecord are what repositories persist for a new quiz.
type (
	OptionRecord struct {
		ID         string
		Text       string
		OrderIndex int
		IsCorrect  bool
	}

	QuestionRecord struct {
		ID         string
		Text       string
		OrderIndex int
		Options    []OptionRecord
	}
)

// NewQuizRecord validates a quiz built outside of the authoring payload (fixtures, CLI).
func NewQuizRecord(qz Quiz) (Quiz, error) {
	if qz.CourseID == "" {
		return Quiz{}, errors.New("quiz must belong to a course")
	}
	if qz.PassingScore < 0 || qz.PassingScore > 100 {
		return Quiz{}, ErrInvalidPassingScore
	}
	if err := qz.checkScope(); err != nil {
		return Quiz{}, err
	}
	return qz, nil
}
