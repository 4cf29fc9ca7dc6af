package course

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/newstandard/academy/core"
	"github.com/newstandard/academy/core/certificate"
	"github.com/newstandard/academy/core/user"
)

var (
	// errors
	ErrNotFound       = errors.New("course not found")
	ErrModuleNotFound = errors.New("module not found")
	ErrLessonNotFound = errors.New("lesson not found")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course) error
		UpdateCourse(ctx context.Context, c Course) error
		DeleteCourse(ctx context.Context, id string) error
		GetCourse(ctx context.Context, id string) (Course, error)
		QueryCourses(ctx context.Context, publishedOnly bool) ([]Course, error)

		CreateModule(ctx context.Context, m Module) error
		GetModule(ctx context.Context, id string) (Module, error)
		DeleteModule(ctx context.Context, id string) error
		QueryModules(ctx context.Context, courseID string) ([]Module, error)

		CreateLesson(ctx context.Context, l Lesson) error
		GetLesson(ctx context.Context, id string) (Lesson, error)
		DeleteLesson(ctx context.Context, id string) error
		// QueryLessons returns the lessons of a course, or of every course when courseID is empty.
		QueryLessons(ctx context.Context, courseID string) ([]Lesson, error)
		QueryQuizRefs(ctx context.Context, courseID string) ([]QuizRef, error)

		// GetAccess returns the user types allowed on a course; none means open to all.
		GetAccess(ctx context.Context, courseID string) ([]string, error)
		SetAccess(ctx context.Context, courseID string, userTypes []string) error

		// CompletedLessonIDs returns the user's completed lessons of a course, or of every course when courseID is empty.
		CompletedLessonIDs(ctx context.Context, userID, courseID string) ([]string, error)
		// MarkLessonComplete is an upsert; completing a lesson twice keeps the first completion time.
		MarkLessonComplete(ctx context.Context, p Progress) error
	}

	Service interface {
		Create(ctx context.Context, nc NewCourse) (Course, error)
		Update(ctx context.Context, id string, uc UpdateCourse) (Course, error)
		Delete(ctx context.Context, id string) error
		Get(ctx context.Context, id string) (Course, error)
		CreateModule(ctx context.Context, nm NewModule) (Module, error)
		DeleteModule(ctx context.Context, id string) error
		CreateLesson(ctx context.Context, nl NewLesson) (Lesson, error)
		DeleteLesson(ctx context.Context, id string) error

		ListForUser(ctx context.Context, usr user.User) ([]Summary, error)
		Outline(ctx context.Context, usr user.User, courseID string) (Outline, error)
		CompleteLesson(ctx context.Context, usr user.User, lessonID string) (CompletionResult, error)

		GetAccess(ctx context.Context, courseID string) ([]string, error)
		SetAccess(ctx context.Context, courseID string, userTypes []string) error
		// CheckAccess returns ErrNotFound when the course is hidden from usr.
		CheckAccess(ctx context.Context, usr user.User, courseID string) (Course, error)
	}

	service struct {
		repo   Repository
		issuer certificate.Issuer
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, issuer certificate.Issuer, logger core.Logger) Service {
	return &service{repo: repo, issuer: issuer, logger: logger}
}

func (svc *service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	now := time.Now().UTC()
	c := Course{
		ID:           uuid.New().String(),
		Title:        nc.Title,
		Description:  nc.Description,
		ThumbnailURL: nc.ThumbnailURL,
		IsPublished:  nc.IsPublished,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := svc.repo.CreateCourse(ctx, c); err != nil {
		return Course{}, errors.Wrap(err, "creating course")
	}
	return c, nil
}

func (svc *service) Update(ctx context.Context, id string, uc UpdateCourse) (Course, error) {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	c.Title = uc.Title
	c.Description = uc.Description
	c.ThumbnailURL = uc.ThumbnailURL
	if uc.IsPublished != nil {
		c.IsPublished = *uc.IsPublished
	}
	c.UpdatedAt = time.Now().UTC()
	if err := svc.repo.UpdateCourse(ctx, c); err != nil {
		return Course{}, errors.Wrap(err, "updating course")
	}
	return c, nil
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteCourse(ctx, id)
}

func (svc *service) Get(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

func (svc *service) CreateModule(ctx context.Context, nm NewModule) (Module, error) {
	if _, err := svc.repo.GetCourse(ctx, nm.CourseID); err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Module{}, core.NewFieldError("course_id", err.Error())
		}
		return Module{}, err
	}
	m := Module{
		ID:         uuid.New().String(),
		CourseID:   nm.CourseID,
		Title:      nm.Title,
		OrderIndex: nm.OrderIndex,
	}
	if err := svc.repo.CreateModule(ctx, m); err != nil {
		return Module{}, errors.Wrap(err, "creating module")
	}
	return m, nil
}

func (svc *service) DeleteModule(ctx context.Context, id string) error {
	return svc.repo.DeleteModule(ctx, id)
}

func (svc *service) CreateLesson(ctx context.Context, nl NewLesson) (Lesson, error) {
	m, err := svc.repo.GetModule(ctx, nl.ModuleID)
	if err != nil {
		if errors.Cause(err) == ErrModuleNotFound {
			return Lesson{}, core.NewFieldError("module_id", err.Error())
		}
		return Lesson{}, err
	}
	l := Lesson{
		ID:              uuid.New().String(),
		ModuleID:        m.ID,
		CourseID:        m.CourseID,
		Title:           nl.Title,
		VideoURL:        nl.VideoURL,
		DurationSeconds: nl.DurationSeconds,
		OrderIndex:      nl.OrderIndex,
	}
	if err := svc.repo.CreateLesson(ctx, l); err != nil {
		return Lesson{}, errors.Wrap(err, "creating lesson")
	}
	return l, nil
}

func (svc *service) DeleteLesson(ctx context.Context, id string) error {
	return svc.repo.DeleteLesson(ctx, id)
}

func (svc *service) canAccess(ctx context.Context, usr user.User, c Course) (bool, error) {
	if usr.CanManageContent() {
		return true, nil
	}
	if !c.IsPublished {
		return false, nil
	}
	types, err := svc.repo.GetAccess(ctx, c.ID)
	if err != nil {
		return false, errors.Wrap(err, "getting course access")
	}
	if len(types) == 0 {
		return true, nil
	}
	for _, t := range types {
		if t == usr.Type {
			return true, nil
		}
	}
	return false, nil
}

func (svc *service) CheckAccess(ctx context.Context, usr user.User, courseID string) (Course, error) {
	c, err := svc.repo.GetCourse(ctx, courseID)
	if err != nil {
		return Course{}, err
	}
	ok, err := svc.canAccess(ctx, usr, c)
	if err != nil {
		return Course{}, err
	}
	if !ok {
		return Course{}, ErrNotFound
	}
	return c, nil
}

func (svc *service) ListForUser(ctx context.Context, usr user.User) ([]Summary, error) {
	courses, err := svc.repo.QueryCourses(ctx, !usr.CanManageContent())
	if err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	lessons, err := svc.repo.QueryLessons(ctx, "")
	if err != nil {
		return nil, errors.Wrap(err, "querying lessons")
	}
	completedIDs, err := svc.repo.CompletedLessonIDs(ctx, usr.ID, "")
	if err != nil {
		return nil, errors.Wrap(err, "querying progress")
	}
	completed := toSet(completedIDs)

	totals := make(map[string]int)
	done := make(map[string]int)
	for _, l := range lessons {
		totals[l.CourseID]++
		if completed[l.ID] {
			done[l.CourseID]++
		}
	}

	summaries := make([]Summary, 0, len(courses))
	for _, c := range courses {
		ok, err := svc.canAccess(ctx, usr, c)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		summaries = append(summaries, Summary{
			Course:           c,
			TotalLessons:     totals[c.ID],
			CompletedLessons: done[c.ID],
			Progress:         core.Percent(done[c.ID], totals[c.ID]),
		})
	}
	return summaries, nil
}

func (svc *service) Outline(ctx context.Context, usr user.User, courseID string) (Outline, error) {
	c, err := svc.CheckAccess(ctx, usr, courseID)
	if err != nil {
		return Outline{}, err
	}
	modules, err := svc.repo.QueryModules(ctx, courseID)
	if err != nil {
		return Outline{}, errors.Wrap(err, "querying modules")
	}
	lessons, err := svc.repo.QueryLessons(ctx, courseID)
	if err != nil {
		return Outline{}, errors.Wrap(err, "querying lessons")
	}
	quizzes, err := svc.repo.QueryQuizRefs(ctx, courseID)
	if err != nil {
		return Outline{}, errors.Wrap(err, "querying quizzes")
	}
	completedIDs, err := svc.repo.CompletedLessonIDs(ctx, usr.ID, courseID)
	if err != nil {
		return Outline{}, errors.Wrap(err, "querying progress")
	}
	completed := toSet(completedIDs)

	out := Outline{Summary: Summary{Course: c, TotalLessons: len(lessons)}}
	byModule := make(map[string]*ModuleOutline, len(modules))
	out.Modules = make([]ModuleOutline, len(modules))
	for i, m := range modules {
		out.Modules[i] = ModuleOutline{Module: m, Lessons: []LessonOutline{}, Quizzes: []QuizRef{}}
		byModule[m.ID] = &out.Modules[i]
	}

	lessonQuizzes := make(map[string][]QuizRef)
	for _, qz := range quizzes {
		switch {
		case qz.LessonID != "":
			lessonQuizzes[qz.LessonID] = append(lessonQuizzes[qz.LessonID], qz)
		case qz.ModuleID != "":
			if mo, ok := byModule[qz.ModuleID]; ok {
				mo.Quizzes = append(mo.Quizzes, qz)
			}
		case qz.IsFinalExam:
			out.FinalExamID = qz.ID
		}
	}

	sort.SliceStable(lessons, func(i, j int) bool { return lessons[i].OrderIndex < lessons[j].OrderIndex })
	for _, l := range lessons {
		mo, ok := byModule[l.ModuleID]
		if !ok {
			continue
		}
		lo := LessonOutline{Lesson: l, Completed: completed[l.ID], Quizzes: lessonQuizzes[l.ID]}
		if lo.Quizzes == nil {
			lo.Quizzes = []QuizRef{}
		}
		if lo.Completed {
			out.CompletedLessons++
		}
		mo.Lessons = append(mo.Lessons, lo)
	}
	out.Progress = core.Percent(out.CompletedLessons, out.TotalLessons)
	return out, nil
}

// CompleteLesson records the lesson as completed. Completing the last lesson of a course
// without a final exam issues the course certificate; issuance failures are only logged.
func (svc *service) CompleteLesson(ctx context.Context, usr user.User, lessonID string) (CompletionResult, error) {
	l, err := svc.repo.GetLesson(ctx, lessonID)
	if err != nil {
		return CompletionResult{}, err
	}
	if _, err := svc.CheckAccess(ctx, usr, l.CourseID); err != nil {
		if errors.Cause(err) == ErrNotFound {
			return CompletionResult{}, ErrLessonNotFound
		}
		return CompletionResult{}, err
	}

	err = svc.repo.MarkLessonComplete(ctx, Progress{
		UserID:      usr.ID,
		LessonID:    l.ID,
		Completed:   true,
		CompletedAt: time.Now().UTC(),
	})
	if err != nil {
		return CompletionResult{}, errors.Wrap(err, "marking lesson complete")
	}

	res := CompletionResult{LessonID: l.ID}
	lessons, err := svc.repo.QueryLessons(ctx, l.CourseID)
	if err != nil {
		return CompletionResult{}, errors.Wrap(err, "querying lessons")
	}
	completedIDs, err := svc.repo.CompletedLessonIDs(ctx, usr.ID, l.CourseID)
	if err != nil {
		return CompletionResult{}, errors.Wrap(err, "querying progress")
	}
	completed := toSet(completedIDs)
	for _, cl := range lessons {
		if !completed[cl.ID] {
			return res, nil
		}
	}
	res.CourseCompleted = true

	quizzes, err := svc.repo.QueryQuizRefs(ctx, l.CourseID)
	if err != nil {
		return CompletionResult{}, errors.Wrap(err, "querying quizzes")
	}
	for _, qz := range quizzes {
		if qz.IsFinalExam {
			// the certificate comes with the final exam
			return res, nil
		}
	}

	cert, err := svc.issuer.Issue(ctx, usr.ID, l.CourseID)
	if err != nil {
		svc.logger.Error("issuing certificate", errors.Wrapf(err, "user %s, course %s", usr.ID, l.CourseID))
		return res, nil
	}
	res.CertificateNumber = cert.Number
	return res, nil
}

func (svc *service) GetAccess(ctx context.Context, courseID string) ([]string, error) {
	if _, err := svc.repo.GetCourse(ctx, courseID); err != nil {
		return nil, err
	}
	return svc.repo.GetAccess(ctx, courseID)
}

func (svc *service) SetAccess(ctx context.Context, courseID string, userTypes []string) error {
	if _, err := svc.repo.GetCourse(ctx, courseID); err != nil {
		return err
	}
	return svc.repo.SetAccess(ctx, courseID, dedupe(userTypes))
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func dedupe(s []string) []string {
	seen := make(map[string]bool, len(s))
	out := make([]string, 0, len(s))
	for _, v := range s {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
