package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newstandard/academy/core"
	"github.com/newstandard/academy/core/activity"
	"github.com/newstandard/academy/core/certificate"
	"github.com/newstandard/academy/core/quiz"
	"github.com/newstandard/academy/core/user"
	emailsvc "github.com/newstandard/academy/services/email"
	eventsvc "github.com/newstandard/academy/services/events"
	metricsvc "github.com/newstandard/academy/services/metrics"
	"github.com/newstandard/academy/storage/database"
	sqlxrepos "github.com/newstandard/academy/storage/database/sqlx"
	testutil "github.com/newstandard/academy/tests"
)

func TestUserRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	repo := sqlxrepos.NewUserRepository(db)

	jane := testutil.CreateUser(t, repo, "Jane", "jane@test.cd", "Secr3t!", testutil.UserOpts{Roles: []string{user.RoleAdmin}})
	testutil.CreateUser(t, repo, "John", "john@test.cd", "", testutil.UserOpts{Inactive: true})

	_, err := repo.CreateUser(ctx, user.User{Name: "Dup", Email: "jane@test.cd", Type: user.TypeEmployee, Roles: []string{}, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()})
	assert.Equal(t, user.ErrEmailExists, errors.Cause(err))

	got, err := repo.GetUser(ctx, user.GetFilter{Email: "jane@test.cd"})
	require.NoError(t, err)
	assert.Equal(t, jane.ID, got.ID)
	assert.Equal(t, []string{user.RoleAdmin}, got.Roles)
	assert.NoError(t, got.CheckPassword("Secr3t!"))

	_, err = repo.GetUser(ctx, user.GetFilter{ID: "not-a-uuid"})
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))

	active := true
	users, err := repo.QueryUsers(ctx, &user.QueryFilter{IsActive: &active})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Jane", users[0].Name)

	got.Name = "Jane Doe"
	_, err = repo.UpdateUser(ctx, got)
	require.NoError(t, err)
	got, err = repo.GetUser(ctx, user.GetFilter{ID: jane.ID})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", got.Name)
}

func TestQuizGrading(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(conf)

	users := sqlxrepos.NewUserRepository(db)
	courses := sqlxrepos.NewCourseRepository(db)
	quizzes := sqlxrepos.NewQuizRepository(db)
	publisher := eventsvc.NewMemoryPublisher()
	m := metricsvc.New(prometheus.NewRegistry())
	certSvc := certificate.NewService(
		sqlxrepos.NewCertificateRepository(db), emailsvc.NewConsoleServiceMock(conf), publisher, m, logger,
	)
	svc := quiz.NewService(quizzes, courses, database.NewTransactor(db), certSvc, publisher, m, logger)

	learner := testutil.CreateUser(t, users, "Learner", "learner@test.cd", "")
	c := testutil.CreateCourse(t, courses, "Safety", true)
	mod := testutil.CreateModule(t, courses, c.ID, "Basics", 0)
	lessons := []string{
		testutil.CreateLesson(t, courses, mod, "Intro", 0).ID,
		testutil.CreateLesson(t, courses, mod, "Gear", 1).ID,
	}
	for _, id := range lessons {
		testutil.CompleteLesson(t, courses, learner.ID, id)
	}
	qf := testutil.CreateQuiz(t, quizzes, quiz.Quiz{CourseID: c.ID, ModuleID: mod.ID, Title: "Basics quiz", PassingScore: 70}, 3)
	final := testutil.CreateQuiz(t, quizzes, quiz.Quiz{CourseID: c.ID, Title: "Final", PassingScore: 50, IsFinalExam: true}, 2)

	res, err := svc.Submit(ctx, qf.Quiz.ID, learner.ID, qf.Answers(1))
	require.NoError(t, err)
	assert.Equal(t, 33, res.Score)
	assert.False(t, res.ProgressReset)

	res, err = svc.Submit(ctx, qf.Quiz.ID, learner.ID, qf.Answers(0))
	require.NoError(t, err)
	assert.True(t, res.ProgressReset)

	completed, err := courses.CompletedLessonIDs(ctx, learner.ID, c.ID)
	require.NoError(t, err)
	assert.Empty(t, completed)
	attempts, err := quizzes.QueryAttempts(ctx, learner.ID, qf.Quiz.ID)
	require.NoError(t, err)
	assert.Empty(t, attempts)

	res, err = svc.Submit(ctx, qf.Quiz.ID, learner.ID, qf.Answers(3))
	require.NoError(t, err)
	assert.True(t, res.Passed)
	_, err = svc.Submit(ctx, qf.Quiz.ID, learner.ID, qf.Answers(3))
	assert.Equal(t, quiz.ErrAlreadyPassed, errors.Cause(err))

	res, err = svc.Submit(ctx, final.Quiz.ID, learner.ID, final.Answers(2))
	require.NoError(t, err)
	require.NotEmpty(t, res.CertificateNumber)

	v, err := certSvc.Verify(ctx, res.CertificateNumber)
	require.NoError(t, err)
	assert.Equal(t, "Learner", v.HolderName)
	assert.Equal(t, "Safety", v.CourseTitle)
}

func TestCertificateRepository_Create(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	users := sqlxrepos.NewUserRepository(db)
	courses := sqlxrepos.NewCourseRepository(db)
	repo := sqlxrepos.NewCertificateRepository(db)

	usr := testutil.CreateUser(t, users, "Jane", "jane@test.cd", "")
	c := testutil.CreateCourse(t, courses, "Safety", true)
	now := time.Now().UTC()

	cert := certificate.Certificate{ID: uuid.New().String(), UserID: usr.ID, CourseID: c.ID, Number: "CERT-2026-AAAAAAAA", IssuedAt: now}
	created, err := repo.Create(ctx, cert)
	require.NoError(t, err)
	assert.True(t, created)

	// one certificate per user and course
	dup := cert
	dup.ID, dup.Number = uuid.New().String(), "CERT-2026-BBBBBBBB"
	created, err = repo.Create(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)

	other := testutil.CreateCourse(t, courses, "Other", true)
	taken := certificate.Certificate{ID: uuid.New().String(), UserID: usr.ID, CourseID: other.ID, Number: cert.Number, IssuedAt: now}
	_, err = repo.Create(ctx, taken)
	assert.Equal(t, certificate.ErrNumberTaken, errors.Cause(err))

	got, err := repo.GetByUserCourse(ctx, usr.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, cert.Number, got.Number)

	details, err := repo.QueryDetails(ctx, certificate.QueryFilter{UserID: usr.ID})
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, "jane@test.cd", details[0].HolderEmail)
}

func TestActivityRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	users := sqlxrepos.NewUserRepository(db)
	svc := activity.NewService(sqlxrepos.NewActivityRepository(db), testutil.NewLogger(testutil.NewConfig()))

	usr := testutil.CreateUser(t, users, "Jane", "jane@test.cd", "")
	svc.Record(ctx, activity.Entry{
		UserID:    usr.ID,
		Action:    activity.ActionUpdate,
		TableName: activity.TableFAQs,
		RecordID:  uuid.New().String(),
		OldData:   map[string]string{"title": "A"},
		NewData:   map[string]string{"title": "B"},
	})
	svc.Record(ctx, activity.Entry{UserID: usr.ID, Action: activity.ActionView, TableName: activity.TableCourses})

	logs, err := svc.Query(ctx, activity.QueryFilter{UserID: usr.ID}, core.DBOrdering{Field: "created_at", Ascending: true})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "Jane", logs[0].UserName)
	assert.JSONEq(t, `{"title":"B"}`, string(logs[0].NewData.JSON))
	assert.False(t, logs[1].OldData.Valid)
}
