package inmemdb

import (
	"context"
	"sync"

	"github.com/newstandard/academy/core"
	"github.com/newstandard/academy/core/activity"
	"github.com/newstandard/academy/core/certificate"
	"github.com/newstandard/academy/core/course"
	"github.com/newstandard/academy/core/faq"
	"github.com/newstandard/academy/core/group"
	"github.com/newstandard/academy/core/quiz"
	"github.com/newstandard/academy/core/user"
)

type (
	DB struct {
		mutex   sync.RWMutex
		txMutex sync.Mutex
		t       *tables
	}

	progressKey struct {
		userID   string
		lessonID string
	}

	tables struct {
		users         map[string]user.User
		courses       map[string]course.Course
		modules       map[string]course.Module
		lessons       map[string]course.Lesson
		access        map[string][]string // course ID: user types
		progress      map[progressKey]course.Progress
		quizzes       map[string]quiz.Quiz
		questions     map[string][]quiz.QuestionRecord // quiz ID: questions
		attempts      map[string]quiz.Attempt
		responses     map[string][]quiz.Response // attempt ID: responses
		certificates  map[string]certificate.Certificate
		groups        map[string]group.Group
		members       map[string][]string // group ID: user IDs
		faqs          map[string]faq.FAQ
		sectionAccess map[string][]string // section ID: group IDs
		notes         map[string]faq.Note
		logs          []activity.Log
	}
)

func Open() *DB {
	return &DB{t: newTables()}
}

func newTables() *tables {
	return &tables{
		users:         make(map[string]user.User),
		courses:       make(map[string]course.Course),
		modules:       make(map[string]course.Module),
		lessons:       make(map[string]course.Lesson),
		access:        make(map[string][]string),
		progress:      make(map[progressKey]course.Progress),
		quizzes:       make(map[string]quiz.Quiz),
		questions:     make(map[string][]quiz.QuestionRecord),
		attempts:      make(map[string]quiz.Attempt),
		responses:     make(map[string][]quiz.Response),
		certificates:  make(map[string]certificate.Certificate),
		groups:        make(map[string]group.Group),
		members:       make(map[string][]string),
		faqs:          make(map[string]faq.FAQ),
		sectionAccess: make(map[string][]string),
		notes:         make(map[string]faq.Note),
	}
}

// clone copies every table. Stored values are never mutated in place, so copying the maps is enough.
func (t *tables) clone() *tables {
	c := newTables()
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.courses {
		c.courses[k] = v
	}
	for k, v := range t.modules {
		c.modules[k] = v
	}
	for k, v := range t.lessons {
		c.lessons[k] = v
	}
	for k, v := range t.access {
		c.access[k] = v
	}
	for k, v := range t.progress {
		c.progress[k] = v
	}
	for k, v := range t.quizzes {
		c.quizzes[k] = v
	}
	for k, v := range t.questions {
		c.questions[k] = v
	}
	for k, v := range t.attempts {
		c.attempts[k] = v
	}
	for k, v := range t.responses {
		c.responses[k] = v
	}
	for k, v := range t.certificates {
		c.certificates[k] = v
	}
	for k, v := range t.groups {
		c.groups[k] = v
	}
	for k, v := range t.members {
		c.members[k] = v
	}
	for k, v := range t.faqs {
		c.faqs[k] = v
	}
	for k, v := range t.sectionAccess {
		c.sectionAccess[k] = v
	}
	for k, v := range t.notes {
		c.notes[k] = v
	}
	c.logs = append(c.logs, t.logs...)
	return c
}

// Transactor serializes transactions and restores the tables when one fails.
type Transactor struct {
	db *DB
}

var _ core.Transactor = (*Transactor)(nil)

func NewTransactor(db *DB) *Transactor {
	return &Transactor{db: db}
}

type txKey struct{}

func (tx *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, exec core.DBExecutor) error) error {
	tx.db.txMutex.Lock()
	defer tx.db.txMutex.Unlock()

	tx.db.mutex.RLock()
	snapshot := tx.db.t.clone()
	tx.db.mutex.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, true), nil); err != nil {
		tx.db.mutex.Lock()
		tx.db.t = snapshot
		tx.db.mutex.Unlock()
		return err
	}
	return nil
}

// lock takes the write lock and returns its release.
// Writes made outside a transaction wait for the running one to end.
func (db *DB) lock(ctx context.Context) func() {
	if inTx, _ := ctx.Value(txKey{}).(bool); inTx {
		db.mutex.Lock()
		return db.mutex.Unlock
	}
	db.txMutex.Lock()
	db.mutex.Lock()
	return func() {
		db.mutex.Unlock()
		db.txMutex.Unlock()
	}
}

// deleteLessons drops the lessons with their progress and quizzes. Callers hold the write lock.
func (t *tables) deleteLessons(ids map[string]bool) {
	for id := range ids {
		delete(t.lessons, id)
	}
	for k := range t.progress {
		if ids[k.lessonID] {
			delete(t.progress, k)
		}
	}
	for id, qz := range t.quizzes {
		if ids[qz.LessonID] {
			t.deleteQuiz(id)
		}
	}
}

func (t *tables) deleteQuiz(id string) {
	delete(t.quizzes, id)
	delete(t.questions, id)
	for attID, att := range t.attempts {
		if att.QuizID == id {
			delete(t.attempts, attID)
			delete(t.responses, attID)
		}
	}
}

func (t *tables) deleteModule(id string) {
	delete(t.modules, id)
	lessonIDs := make(map[string]bool)
	for lid, l := range t.lessons {
		if l.ModuleID == id {
			lessonIDs[lid] = true
		}
	}
	t.deleteLessons(lessonIDs)
	for qid, qz := range t.quizzes {
		if qz.ModuleID == id {
			t.deleteQuiz(qid)
		}
	}
}

func (t *tables) deleteCourse(id string) {
	delete(t.courses, id)
	delete(t.access, id)
	for mid, m := range t.modules {
		if m.CourseID == id {
			t.deleteModule(mid)
		}
	}
	for qid, qz := range t.quizzes {
		if qz.CourseID == id {
			t.deleteQuiz(qid)
		}
	}
	for cid, cert := range t.certificates {
		if cert.CourseID == id {
			delete(t.certificates, cid)
		}
	}
}

func (t *tables) deleteUser(id string) {
	delete(t.users, id)
	for k := range t.progress {
		if k.userID == id {
			delete(t.progress, k)
		}
	}
	for attID, att := range t.attempts {
		if att.UserID == id {
			delete(t.attempts, attID)
			delete(t.responses, attID)
		}
	}
	for cid, cert := range t.certificates {
		if cert.UserID == id {
			delete(t.certificates, cid)
		}
	}
	for gid, g := range t.groups {
		if g.LeaderID == id {
			g.LeaderID = ""
			t.groups[gid] = g
		}
	}
	for gid, ids := range t.members {
		t.members[gid] = without(ids, id)
	}
	for nid, n := range t.notes {
		if n.UserID == id {
			delete(t.notes, nid)
		}
	}
	for i, l := range t.logs {
		if l.UserID == id {
			l.UserID = ""
			t.logs[i] = l
		}
	}
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
