package quiz_test

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newstandard/academy/core"
	"github.com/newstandard/academy/core/certificate"
	"github.com/newstandard/academy/core/course"
	"github.com/newstandard/academy/core/quiz"
	"github.com/newstandard/academy/core/user"
	"github.com/newstandard/academy/services/email"
	"github.com/newstandard/academy/services/events"
	"github.com/newstandard/academy/services/metrics"
	"github.com/newstandard/academy/storage/database/inmem"
	"github.com/newstandard/academy/tests"
)

type fixture struct {
	svc       quiz.Service
	certSvc   certificate.Service
	users     user.Repository
	courses   course.Repository
	quizzes   quiz.Repository
	publisher *eventsvc.MemoryPublisher
	// newService builds a quiz service over the same tables.
	newService func(repo quiz.Repository, issuer certificate.Issuer) quiz.Service

	learner user.User
	course  course.Course
	module  course.Module
	lessons []course.Lesson // first two in module, last one in module2
	module2 course.Module
}

func setup(t *testing.T) *fixture {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(conf)
	db := inmemdb.Open()
	courses := inmemdb.NewCourseRepository(db)

	fx := &fixture{
		users:     inmemdb.NewUserRepository(db),
		courses:   courses,
		quizzes:   inmemdb.NewQuizRepository(db),
		publisher: eventsvc.NewMemoryPublisher(),
	}
	m := metricsvc.New(prometheus.NewRegistry())
	fx.certSvc = certificate.NewService(
		inmemdb.NewCertificateRepository(db), emailsvc.NewConsoleServiceMock(conf), fx.publisher, m, logger,
	)
	tx := inmemdb.NewTransactor(db)
	fx.newService = func(repo quiz.Repository, issuer certificate.Issuer) quiz.Service {
		return quiz.NewService(repo, courses, tx, issuer, fx.publisher, m, logger)
	}
	fx.svc = fx.newService(fx.quizzes, fx.certSvc)

	fx.learner = testutil.CreateUser(t, fx.users, "Learner", "learner@test.cd", "")
	fx.course = testutil.CreateCourse(t, courses, "Safety 101", true)
	fx.module = testutil.CreateModule(t, courses, fx.course.ID, "Basics", 0)
	fx.module2 = testutil.CreateModule(t, courses, fx.course.ID, "Advanced", 1)
	fx.lessons = []course.Lesson{
		testutil.CreateLesson(t, courses, fx.module, "Intro", 0),
		testutil.CreateLesson(t, courses, fx.module, "Gear", 1),
		testutil.CreateLesson(t, courses, fx.module2, "Drills", 0),
	}
	return fx
}

func (fx *fixture) completeAll(t *testing.T) {
	for _, l := range fx.lessons {
		testutil.CompleteLesson(t, fx.courses, fx.learner.ID, l.ID)
	}
}

func (fx *fixture) completed(t *testing.T) []string {
	ids, err := fx.courses.CompletedLessonIDs(context.Background(), fx.learner.ID, fx.course.ID)
	require.NoError(t, err)
	return ids
}

func TestSubmit_scoring(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		questions  int
		passing    int
		correct    int
		wantScore  int
		wantPassed bool
	}{
		{name: "2 of 3 below 70", questions: 3, passing: 70, correct: 2, wantScore: 67},
		{name: "3 of 4 at 75", questions: 4, passing: 75, correct: 3, wantScore: 75, wantPassed: true},
		{name: "0 of 2", questions: 2, passing: 50, correct: 0, wantScore: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qf := testutil.CreateQuiz(t, fx.quizzes, quiz.Quiz{
				CourseID: fx.course.ID, Title: tt.name, PassingScore: tt.passing, LessonID: fx.lessons[0].ID,
			}, tt.questions)

			res, err := fx.svc.Submit(ctx, qf.Quiz.ID, fx.learner.ID, qf.Answers(tt.correct))
			require.NoError(t, err)
			assert.Equal(t, tt.wantScore, res.Score)
			assert.Equal(t, tt.wantPassed, res.Passed)
			assert.Equal(t, tt.correct, res.CorrectCount)
			assert.Equal(t, tt.questions, res.TotalQuestions)
			assert.Equal(t, tt.passing, res.PassingScore)
			assert.Equal(t, 1, res.AttemptCount)
			assert.NotEmpty(t, res.AttemptID)
			assert.False(t, res.ProgressReset)
			if tt.wantPassed {
				assert.Equal(t, 0, res.AttemptsRemaining)
			} else {
				assert.Equal(t, 1, res.AttemptsRemaining)
			}
		})
	}
}

func TestSubmit_invalidSubmissions(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	qf := testutil.CreateQuiz(t, fx.quizzes, quiz.Quiz{
		CourseID: fx.course.ID, Title: "Quiz", PassingScore: 50, LessonID: fx.lessons[0].ID,
	}, 3)

	partial := qf.Answers(3)
	for qid := range partial {
		delete(partial, qid)
		break
	}
	foreign := qf.Answers(3)
	for qid := range foreign {
		foreign[qid] = "not-an-option"
		break
	}

	tests := []struct {
		name    string
		quizID  string
		answers map[string]string
		wantErr error
	}{
		{name: "unknown quiz", quizID: "nope", answers: qf.Answers(3), wantErr: quiz.ErrQuizNotFound},
		{name: "partial", quizID: qf.Quiz.ID, answers: partial, wantErr: quiz.ErrIncompleteSubmission},
		{name: "empty", quizID: qf.Quiz.ID, answers: nil, wantErr: quiz.ErrIncompleteSubmission},
		{name: "unknown option", quizID: qf.Quiz.ID, answers: foreign, wantErr: quiz.ErrInvalidOption},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.svc.Submit(ctx, tt.quizID, fx.learner.ID, tt.answers)
			assert.Equal(t, tt.wantErr, err)
		})
	}

	// rejected submissions do not count as attempts
	st, err := fx.svc.Status(ctx, qf.Quiz.ID, fx.learner.ID)
	require.NoError(t, err)
	assert.Equal(t, quiz.StateNotAttempted, st.State)
	assert.Equal(t, 0, st.AttemptCount)
	assert.Empty(t, fx.publisher.Events(quiz.EventAttemptGraded))
}

func TestSubmit_resetAfterSecondFailure(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	fx.completeAll(t)

	qf := testutil.CreateQuiz(t, fx.quizzes, quiz.Quiz{
		CourseID: fx.course.ID, Title: "Module quiz", PassingScore: 75, ModuleID: fx.module.ID,
	}, 4)

	res, err := fx.svc.Submit(ctx, qf.Quiz.ID, fx.learner.ID, qf.Answers(1))
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.False(t, res.ProgressReset)
	assert.Equal(t, 1, res.AttemptsRemaining)
	assert.Len(t, fx.completed(t), 3)

	st, err := fx.svc.Status(ctx, qf.Quiz.ID, fx.learner.ID)
	require.NoError(t, err)
	assert.Equal(t, quiz.StateAttempt1Failed, st.State)

	res, err = fx.svc.Submit(ctx, qf.Quiz.ID, fx.learner.ID, qf.Answers(2))
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.True(t, res.ProgressReset)
	assert.Equal(t, 2, res.AttemptCount)
	assert.Equal(t, quiz.MaxAttempts, res.AttemptsRemaining)

	// only the lessons of the quiz's module are reset
	assert.ElementsMatch(t, []string{fx.lessons[2].ID}, fx.completed(t))

	st, err = fx.svc.Status(ctx, qf.Quiz.ID, fx.learner.ID)
	require.NoError(t, err)
	assert.Equal(t, quiz.StateNotAttempted, st.State)
	assert.Equal(t, 0, st.AttemptCount)

	attempts, err := fx.svc.Attempts(ctx, qf.Quiz.ID, fx.learner.ID)
	require.NoError(t, err)
	assert.Empty(t, attempts)

	assert.Len(t, fx.publisher.Events(quiz.EventAttemptGraded), 2)
	assert.Len(t, fx.publisher.Events(quiz.EventProgressReset), 1)

	// a fresh cycle starts at attempt 1
	res, err = fx.svc.Submit(ctx, qf.Quiz.ID, fx.learner.ID, qf.Answers(4))
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, 1, res.AttemptCount)
}

func TestSubmit_lessonAndCourseScopes(t *testing.T) {
	ctx := context.Background()

	t.Run("lesson", func(t *testing.T) {
		fx := setup(t)
		fx.completeAll(t)
		qf := testutil.CreateQuiz(t, fx.quizzes, quiz.Quiz{
			CourseID: fx.course.ID, Title: "Lesson quiz", PassingScore: 100, LessonID: fx.lessons[1].ID,
		}, 2)
		for i := 0; i < quiz.MaxAttempts; i++ {
			_, err := fx.svc.Submit(ctx, qf.Quiz.ID, fx.learner.ID, qf.Answers(0))
			require.NoError(t, err)
		}
		assert.ElementsMatch(t, []string{fx.lessons[0].ID, fx.lessons[2].ID}, fx.completed(t))
	})

	t.Run("final exam", func(t *testing.T) {
		fx := setup(t)
		fx.completeAll(t)
		qf := testutil.CreateQuiz(t, fx.quizzes, quiz.Quiz{
			CourseID: fx.course.ID, Title: "Final", PassingScore: 100, IsFinalExam: true,
		}, 2)
		for i := 0; i < quiz.MaxAttempts; i++ {
			_, err := fx.svc.Submit(ctx, qf.Quiz.ID, fx.learner.ID, qf.Answers(1))
			require.NoError(t, err)
		}
		assert.Empty(t, fx.completed(t))
	})
}

func TestSubmit_passAfterFailureKeepsHistory(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	qf := testutil.CreateQuiz(t, fx.quizzes, quiz.Quiz{
		CourseID: fx.course.ID, Title: "Quiz", PassingScore: 50, LessonID: fx.lessons[0].ID,
	}, 2)

	res, err := fx.svc.Submit(ctx, qf.Quiz.ID, fx.learner.ID, qf.Answers(0))
	require.NoError(t, err)
	require.False(t, res.Passed)

	res, err = fx.svc.Submit(ctx, qf.Quiz.ID, fx.learner.ID, qf.Answers(2))
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.False(t, res.ProgressReset)
	assert.Equal(t, 2, res.AttemptCount)
	assert.Equal(t, 0, res.AttemptsRemaining)

	attempts, err := fx.svc.Attempts(ctx, qf.Quiz.ID, fx.learner.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.False(t, attempts[0].Passed)
	assert.True(t, attempts[1].Passed)

	st, err := fx.svc.Status(ctx, qf.Quiz.ID, fx.learner.ID)
	require.NoError(t, err)
	assert.Equal(t, quiz.StatePassed, st.State)
	assert.Equal(t, 100, st.BestScore)

	_, err = fx.svc.Submit(ctx, qf.Quiz.ID, fx.learner.ID, qf.Answers(2))
	assert.Equal(t, quiz.ErrAlreadyPassed, err)

	attempts, err = fx.svc.Attempts(ctx, qf.Quiz.ID, fx.learner.ID)
	require.NoError(t, err)
	assert.Len(t, attempts, 2)
}

func TestSubmit_finalExamIssuesCertificateOnce(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	fx.completeAll(t)
	qf := testutil.CreateQuiz(t, fx.quizzes, quiz.Quiz{
		CourseID: fx.course.ID, Title: "Final", PassingScore: 80, IsFinalExam: true,
	}, 5)

	res, err := fx.svc.Submit(ctx, qf.Quiz.ID, fx.learner.ID, qf.Answers(3))
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Empty(t, res.CertificateNumber)

	res, err = fx.svc.Submit(ctx, qf.Quiz.ID, fx.learner.ID, qf.Answers(4))
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Regexp(t, `^CERT-\d{4}-[0-9A-Z]{8}-[0-9A-Z]+$`, res.CertificateNumber)

	// issuing again hands back the same certificate
	cert, err := fx.certSvc.Issue(ctx, fx.learner.ID, fx.course.ID)
	require.NoError(t, err)
	assert.Equal(t, res.CertificateNumber, cert.Number)

	certs, err := fx.certSvc.ForUser(ctx, fx.learner.ID)
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.Equal(t, "Safety 101", certs[0].CourseTitle)
	assert.Equal(t, "Learner", certs[0].HolderName)
	assert.Len(t, fx.publisher.Events(certificate.EventIssued), 1)

	_, err = fx.svc.Submit(ctx, qf.Quiz.ID, fx.learner.ID, qf.Answers(5))
	assert.Equal(t, quiz.ErrAlreadyPassed, err)
}

type failingIssuer struct{}

func (failingIssuer) Issue(context.Context, string, string) (certificate.Certificate, error) {
	return certificate.Certificate{}, errors.New("mail server down")
}

func TestSubmit_certificateFailureKeepsGrade(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	svc := fx.newService(fx.quizzes, failingIssuer{})
	qf := testutil.CreateQuiz(t, fx.quizzes, quiz.Quiz{
		CourseID: fx.course.ID, Title: "Final", PassingScore: 50, IsFinalExam: true,
	}, 2)

	res, err := svc.Submit(ctx, qf.Quiz.ID, fx.learner.ID, qf.Answers(2))
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Empty(t, res.CertificateNumber)

	st, err := svc.Status(ctx, qf.Quiz.ID, fx.learner.ID)
	require.NoError(t, err)
	assert.Equal(t, quiz.StatePassed, st.State)
	assert.Len(t, fx.publisher.Events(quiz.EventAttemptGraded), 1)
}

// failingRepo fails the attempt writes it is told to.
type failingRepo struct {
	quiz.Repository
	failCreate, failDelete bool
}

var errStore = errors.New("connection reset")

func (r failingRepo) CreateAttempt(ctx context.Context, att quiz.Attempt, responses []quiz.Response, exec ...core.DBExecutor) error {
	if r.failCreate {
		return errStore
	}
	return r.Repository.CreateAttempt(ctx, att, responses, exec...)
}

func (r failingRepo) DeleteAttempts(ctx context.Context, userID, quizID string, exec ...core.DBExecutor) error {
	if r.failDelete {
		return errStore
	}
	return r.Repository.DeleteAttempts(ctx, userID, quizID, exec...)
}

func TestSubmit_persistenceFailure(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		repo func(quiz.Repository) quiz.Repository
	}{
		{name: "inserting attempt", repo: func(r quiz.Repository) quiz.Repository { return failingRepo{Repository: r, failCreate: true} }},
		{name: "resetting progress", repo: func(r quiz.Repository) quiz.Repository { return failingRepo{Repository: r, failDelete: true} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := setup(t)
			fx.completeAll(t)
			qf := testutil.CreateQuiz(t, fx.quizzes, quiz.Quiz{
				CourseID: fx.course.ID, Title: "Module quiz", PassingScore: 100, ModuleID: fx.module.ID,
			}, 2)

			// first failure goes through, the second one would reset the module
			_, err := fx.svc.Submit(ctx, qf.Quiz.ID, fx.learner.ID, qf.Answers(0))
			require.NoError(t, err)

			svc := fx.newService(tt.repo(fx.quizzes), fx.certSvc)
			_, err = svc.Submit(ctx, qf.Quiz.ID, fx.learner.ID, qf.Answers(0))
			var perr *quiz.PersistenceError
			require.True(t, errors.As(err, &perr), "got %v", err)
			assert.Equal(t, errStore, errors.Cause(perr.Err))

			attempts, err := fx.quizzes.QueryAttempts(ctx, fx.learner.ID, qf.Quiz.ID)
			require.NoError(t, err)
			assert.Len(t, attempts, 1)
			assert.Len(t, fx.completed(t), 3)
			assert.Len(t, fx.publisher.Events(quiz.EventAttemptGraded), 1)
			assert.Empty(t, fx.publisher.Events(quiz.EventProgressReset))
		})
	}
}

func TestSubmit_learnersAreIndependent(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	other := testutil.CreateUser(t, fx.users, "Other", "other@test.cd", "")
	qf := testutil.CreateQuiz(t, fx.quizzes, quiz.Quiz{
		CourseID: fx.course.ID, Title: "Quiz", PassingScore: 50, LessonID: fx.lessons[0].ID,
	}, 2)

	_, err := fx.svc.Submit(ctx, qf.Quiz.ID, fx.learner.ID, qf.Answers(2))
	require.NoError(t, err)

	res, err := fx.svc.Submit(ctx, qf.Quiz.ID, other.ID, qf.Answers(0))
	require.NoError(t, err)
	assert.Equal(t, 1, res.AttemptCount)

	st, err := fx.svc.Status(ctx, qf.Quiz.ID, other.ID)
	require.NoError(t, err)
	assert.Equal(t, quiz.StateAttempt1Failed, st.State)
}

func TestSubmit_concurrentSubmissionsAreSerialized(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	qf := testutil.CreateQuiz(t, fx.quizzes, quiz.Quiz{
		CourseID: fx.course.ID, Title: "Quiz", PassingScore: 100, ModuleID: fx.module.ID,
	}, 2)

	const n = 4
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		resets int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := fx.svc.Submit(ctx, qf.Quiz.ID, fx.learner.ID, qf.Answers(0))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if res.ProgressReset {
				resets++
			}
		}()
	}
	wg.Wait()

	// fail, fail+reset, fail, fail+reset
	assert.Equal(t, n/quiz.MaxAttempts, resets)
	st, err := fx.svc.Status(ctx, qf.Quiz.ID, fx.learner.ID)
	require.NoError(t, err)
	assert.Equal(t, quiz.StateNotAttempted, st.State)
	assert.Equal(t, 0, st.AttemptCount)
}

func TestService_Create(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	qv, err := fx.svc.Create(ctx, quiz.NewQuiz{
		CourseID:     fx.course.ID,
		Title:        "Authored",
		PassingScore: 60,
		ModuleID:     fx.module.ID,
		Questions: []quiz.NewQuestion{
			{Text: "Q1", Options: []quiz.NewOption{{Text: "yes", IsCorrect: true}, {Text: "no"}}},
			{Text: "Q2", Options: []quiz.NewOption{{Text: "a"}, {Text: "b", IsCorrect: true}, {Text: "c"}}},
		},
	})
	require.NoError(t, err)
	require.Len(t, qv.Questions, 2)
	assert.Len(t, qv.Questions[1].Options, 3)

	shown, err := fx.svc.GetForDisplay(ctx, qv.ID)
	require.NoError(t, err)
	assert.Equal(t, qv.Questions, shown.Questions)

	answers := map[string]string{
		qv.Questions[0].ID: qv.Questions[0].Options[0].ID,
		qv.Questions[1].ID: qv.Questions[1].Options[1].ID,
	}
	res, err := fx.svc.Submit(ctx, qv.ID, fx.learner.ID, answers)
	require.NoError(t, err)
	assert.Equal(t, 100, res.Score)

	_, err = fx.svc.Create(ctx, quiz.NewQuiz{CourseID: fx.course.ID, Title: "No scope", Questions: []quiz.NewQuestion{}})
	assert.Error(t, err)
}
