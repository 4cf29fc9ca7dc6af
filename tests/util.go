package testutil

import (
	"context"
	"io/ioutil"
	"log"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/newstandard/academy/core"
	"github.com/newstandard/academy/core/course"
	"github.com/newstandard/academy/core/quiz"
	"github.com/newstandard/academy/core/user"
	"github.com/newstandard/academy/services/logger"
)

// NewConfig returns the configuration tests run with. It never reads the environment.
func NewConfig() *core.Config {
	conf := &core.Config{
		Build:                     "test",
		Env:                       "TEST",
		TestMode:                  true,
		AppName:                   "Academy",
		SecretKey:                 "test-secret-key",
		FrontendBaseURL:           "http://academy.test",
		DefaultFromEmailName:      "Academy",
		DefaultFromEmailAddress:   "noreply@academy.test",
		PasswordResetTimeoutDelta: time.Hour,
		EmailConfirmTimeoutDelta:  time.Hour,
	}
	conf.Server.Host = "localhost"
	conf.Server.JWTExpirationDelta = time.Hour
	conf.Server.JWTRefreshExpirationDelta = 24 * time.Hour
	conf.Server.MFATokenExpirationDelta = 5 * time.Minute
	conf.Storage.Bucket = "faq-documents"
	conf.Storage.PresignExpiry = 15 * time.Minute
	conf.RateLimit.Requests = 3
	conf.RateLimit.Window = time.Minute
	return conf
}

// NewLogger returns a silent application logger.
func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), conf)
}

type UserOpts struct {
	Roles     []string
	Type      string
	Inactive  bool
	Pending   bool // email not confirmed
	CreatedAt time.Time
}

func CreateUser(t *testing.T, repo user.Repository, name, email, pwd string, opts ...UserOpts) user.User {
	var opt UserOpts
	if len(opts) > 0 {
		opt = opts[0]
	}
	tstamp := time.Now().UTC()
	if !opt.CreatedAt.IsZero() {
		tstamp = opt.CreatedAt.UTC()
	}
	usr := user.User{
		Name:           name,
		Email:          email,
		Type:           opt.Type,
		Roles:          opt.Roles,
		IsActive:       !opt.Inactive,
		EmailConfirmed: !opt.Pending,
		CreatedAt:      tstamp,
		UpdatedAt:      tstamp,
	}
	if usr.Type == "" {
		usr.Type = user.TypeEmployee
	}
	if usr.Roles == nil {
		usr.Roles = []string{user.RoleLearner}
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateCourse(t *testing.T, repo course.Repository, title string, published bool) course.Course {
	now := time.Now().UTC()
	c := course.Course{
		ID:          uuid.New().String(),
		Title:       title,
		IsPublished: published,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := repo.CreateCourse(context.Background(), c); err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return c
}

func CreateModule(t *testing.T, repo course.Repository, courseID, title string, order int) course.Module {
	m := course.Module{ID: uuid.New().String(), CourseID: courseID, Title: title, OrderIndex: order}
	if err := repo.CreateModule(context.Background(), m); err != nil {
		t.Fatalf("CreateModule() failed: %v", err)
	}
	return m
}

func CreateLesson(t *testing.T, repo course.Repository, m course.Module, title string, order int) course.Lesson {
	l := course.Lesson{
		ID:              uuid.New().String(),
		ModuleID:        m.ID,
		CourseID:        m.CourseID,
		Title:           title,
		DurationSeconds: 300,
		OrderIndex:      order,
	}
	if err := repo.CreateLesson(context.Background(), l); err != nil {
		t.Fatalf("CreateLesson() failed: %v", err)
	}
	return l
}

func CompleteLesson(t *testing.T, repo course.Repository, userID, lessonID string) {
	err := repo.MarkLessonComplete(context.Background(), course.Progress{
		UserID:      userID,
		LessonID:    lessonID,
		Completed:   true,
		CompletedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CompleteLesson() failed: %v", err)
	}
}

// QuizFixture is a quiz of two-option questions whose answer sheets are known.
type QuizFixture struct {
	Quiz    quiz.Quiz
	Correct map[string]string // question ID: correct option ID
	Wrong   map[string]string // question ID: wrong option ID
	order   []string
}

// Answers returns a full answer sheet with the first `correct` questions answered right.
func (f QuizFixture) Answers(correct int) map[string]string {
	answers := make(map[string]string, len(f.order))
	for i, qid := range f.order {
		if i < correct {
			answers[qid] = f.Correct[qid]
		} else {
			answers[qid] = f.Wrong[qid]
		}
	}
	return answers
}

// CreateQuiz stores qz with n questions. qz must have a CourseID and exactly one scope.
func CreateQuiz(t *testing.T, repo quiz.Repository, qz quiz.Quiz, n int) QuizFixture {
	qz, err := quiz.NewQuizRecord(qz)
	if err != nil {
		t.Fatalf("CreateQuiz() failed: %v", err)
	}
	now := time.Now().UTC()
	qz.ID = uuid.New().String()
	qz.CreatedAt = now
	qz.UpdatedAt = now

	fx := QuizFixture{Quiz: qz, Correct: make(map[string]string), Wrong: make(map[string]string)}
	records := make([]quiz.QuestionRecord, 0, n)
	for i := 0; i < n; i++ {
		rec := quiz.QuestionRecord{
			ID:         uuid.New().String(),
			Text:       "Question " + strconv.Itoa(i+1),
			OrderIndex: i,
			Options: []quiz.OptionRecord{
				{ID: uuid.New().String(), Text: "Right", OrderIndex: 0, IsCorrect: true},
				{ID: uuid.New().String(), Text: "Wrong", OrderIndex: 1},
			},
		}
		fx.Correct[rec.ID] = rec.Options[0].ID
		fx.Wrong[rec.ID] = rec.Options[1].ID
		fx.order = append(fx.order, rec.ID)
		records = append(records, rec)
	}
	if err := repo.CreateQuiz(context.Background(), qz, records); err != nil {
		t.Fatalf("CreateQuiz() failed: %v", err)
	}
	return fx
}
