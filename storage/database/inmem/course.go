package inmemdb

import (
	"context"
	"sort"

	"github.com/newstandard/academy/core"
	"github.com/newstandard/academy/core/course"
	"github.com/newstandard/academy/core/quiz"
)

// courseRepository also serves as the progress store of the quiz reset policy.
type courseRepository struct {
	db *DB
}

var (
	_ course.Repository  = (*courseRepository)(nil)
	_ quiz.ProgressStore = (*courseRepository)(nil)
)

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course) error {
	defer repo.db.lock(ctx)()
	repo.db.t.courses[c.ID] = c
	return nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, c course.Course) error {
	defer repo.db.lock(ctx)()
	if _, ok := repo.db.t.courses[c.ID]; !ok {
		return course.ErrNotFound
	}
	repo.db.t.courses[c.ID] = c
	return nil
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	defer repo.db.lock(ctx)()
	if _, ok := repo.db.t.courses[id]; !ok {
		return course.ErrNotFound
	}
	repo.db.t.deleteCourse(id)
	return nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id string) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if c, ok := repo.db.t.courses[id]; ok {
		return c, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryCourses(_ context.Context, publishedOnly bool) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := make([]course.Course, 0, len(repo.db.t.courses))
	for _, c := range repo.db.t.courses {
		if !publishedOnly || c.IsPublished {
			courses = append(courses, c)
		}
	}
	sort.Slice(courses, func(i, j int) bool {
		if !courses[i].CreatedAt.Equal(courses[j].CreatedAt) {
			return courses[i].CreatedAt.Before(courses[j].CreatedAt)
		}
		return courses[i].Title < courses[j].Title
	})
	return courses, nil
}

func (repo *courseRepository) CreateModule(ctx context.Context, m course.Module) error {
	defer repo.db.lock(ctx)()
	if _, ok := repo.db.t.courses[m.CourseID]; !ok {
		return course.ErrNotFound
	}
	repo.db.t.modules[m.ID] = m
	return nil
}

func (repo *courseRepository) GetModule(_ context.Context, id string) (course.Module, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if m, ok := repo.db.t.modules[id]; ok {
		return m, nil
	}
	return course.Module{}, course.ErrModuleNotFound
}

func (repo *courseRepository) DeleteModule(ctx context.Context, id string) error {
	defer repo.db.lock(ctx)()
	if _, ok := repo.db.t.modules[id]; !ok {
		return course.ErrModuleNotFound
	}
	repo.db.t.deleteModule(id)
	return nil
}

func (repo *courseRepository) QueryModules(_ context.Context, courseID string) ([]course.Module, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	modules := make([]course.Module, 0)
	for _, m := range repo.db.t.modules {
		if m.CourseID == courseID {
			modules = append(modules, m)
		}
	}
	sort.Slice(modules, func(i, j int) bool {
		if modules[i].OrderIndex != modules[j].OrderIndex {
			return modules[i].OrderIndex < modules[j].OrderIndex
		}
		return modules[i].Title < modules[j].Title
	})
	return modules, nil
}

func (repo *courseRepository) CreateLesson(ctx context.Context, l course.Lesson) error {
	defer repo.db.lock(ctx)()
	if _, ok := repo.db.t.modules[l.ModuleID]; !ok {
		return course.ErrModuleNotFound
	}
	repo.db.t.lessons[l.ID] = l
	return nil
}

func (repo *courseRepository) GetLesson(_ context.Context, id string) (course.Lesson, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if l, ok := repo.db.t.lessons[id]; ok {
		return l, nil
	}
	return course.Lesson{}, course.ErrLessonNotFound
}

func (repo *courseRepository) DeleteLesson(ctx context.Context, id string) error {
	defer repo.db.lock(ctx)()
	if _, ok := repo.db.t.lessons[id]; !ok {
		return course.ErrLessonNotFound
	}
	repo.db.t.deleteLessons(map[string]bool{id: true})
	return nil
}

func (repo *courseRepository) QueryLessons(_ context.Context, courseID string) ([]course.Lesson, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	lessons := make([]course.Lesson, 0)
	for _, l := range repo.db.t.lessons {
		if courseID == "" || l.CourseID == courseID {
			lessons = append(lessons, l)
		}
	}
	modules := repo.db.t.modules
	sort.Slice(lessons, func(i, j int) bool {
		a, b := lessons[i], lessons[j]
		if a.CourseID != b.CourseID {
			return a.CourseID < b.CourseID
		}
		if ma, mb := modules[a.ModuleID].OrderIndex, modules[b.ModuleID].OrderIndex; ma != mb {
			return ma < mb
		}
		if a.ModuleID != b.ModuleID {
			return a.ModuleID < b.ModuleID
		}
		return a.OrderIndex < b.OrderIndex
	})
	return lessons, nil
}

func (repo *courseRepository) QueryQuizRefs(_ context.Context, courseID string) ([]course.QuizRef, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	quizzes := make([]quiz.Quiz, 0)
	for _, qz := range repo.db.t.quizzes {
		if qz.CourseID == courseID {
			quizzes = append(quizzes, qz)
		}
	}
	sort.Slice(quizzes, func(i, j int) bool { return quizzes[i].CreatedAt.Before(quizzes[j].CreatedAt) })

	refs := make([]course.QuizRef, 0, len(quizzes))
	for _, qz := range quizzes {
		refs = append(refs, course.QuizRef{
			ID:          qz.ID,
			Title:       qz.Title,
			LessonID:    qz.LessonID,
			ModuleID:    qz.ModuleID,
			IsFinalExam: qz.IsFinalExam,
		})
	}
	return refs, nil
}

func (repo *courseRepository) GetAccess(_ context.Context, courseID string) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	types := append([]string{}, repo.db.t.access[courseID]...)
	sort.Strings(types)
	return types, nil
}

func (repo *courseRepository) SetAccess(ctx context.Context, courseID string, userTypes []string) error {
	defer repo.db.lock(ctx)()

	types := make([]string, 0, len(userTypes))
	for _, t := range userTypes {
		if !contains(types, t) {
			types = append(types, t)
		}
	}
	if len(types) == 0 {
		delete(repo.db.t.access, courseID)
		return nil
	}
	repo.db.t.access[courseID] = types
	return nil
}

func (repo *courseRepository) CompletedLessonIDs(_ context.Context, userID, courseID string) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ids := make([]string, 0)
	for k, p := range repo.db.t.progress {
		if k.userID != userID || !p.Completed {
			continue
		}
		if courseID != "" && repo.db.t.lessons[k.lessonID].CourseID != courseID {
			continue
		}
		ids = append(ids, k.lessonID)
	}
	return ids, nil
}

func (repo *courseRepository) MarkLessonComplete(ctx context.Context, p course.Progress) error {
	defer repo.db.lock(ctx)()

	key := progressKey{userID: p.UserID, lessonID: p.LessonID}
	if prev, ok := repo.db.t.progress[key]; ok {
		prev.Completed = true
		repo.db.t.progress[key] = prev
		return nil
	}
	p.Completed = true
	repo.db.t.progress[key] = p
	return nil
}

func (repo *courseRepository) LessonIDsInScope(_ context.Context, scope quiz.Scope, _ ...core.DBExecutor) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ids := make([]string, 0)
	for id, l := range repo.db.t.lessons {
		var in bool
		switch scope.Kind {
		case quiz.ScopeLesson:
			in = id == scope.ID
		case quiz.ScopeModule:
			in = l.ModuleID == scope.ID
		default:
			in = l.CourseID == scope.ID
		}
		if in {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (repo *courseRepository) DeleteLessonProgress(ctx context.Context, userID string, lessonIDs []string, _ ...core.DBExecutor) error {
	defer repo.db.lock(ctx)()
	for _, id := range lessonIDs {
		delete(repo.db.t.progress, progressKey{userID: userID, lessonID: id})
	}
	return nil
}
