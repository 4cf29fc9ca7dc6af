package inmemdb

import (
	"context"
	"sort"

	"github.com/newstandard/academy/core/faq"
)

type faqRepository struct {
	db *DB
}

var _ faq.Repository = (*faqRepository)(nil)

func NewFAQRepository(db *DB) faq.Repository {
	return &faqRepository{db: db}
}

func (repo *faqRepository) CreateFAQ(ctx context.Context, f faq.FAQ) error {
	defer repo.db.lock(ctx)()
	f.HasDocument = f.PDFObject != ""
	repo.db.t.faqs[f.ID] = f
	return nil
}

func (repo *faqRepository) UpdateFAQ(ctx context.Context, f faq.FAQ) error {
	defer repo.db.lock(ctx)()
	if _, ok := repo.db.t.faqs[f.ID]; !ok {
		return faq.ErrNotFound
	}
	f.HasDocument = f.PDFObject != ""
	repo.db.t.faqs[f.ID] = f
	return nil
}

func (repo *faqRepository) DeleteFAQ(ctx context.Context, id string) error {
	defer repo.db.lock(ctx)()
	if _, ok := repo.db.t.faqs[id]; !ok {
		return faq.ErrNotFound
	}
	repo.deleteFAQ(id)
	return nil
}

func (repo *faqRepository) deleteFAQ(id string) {
	delete(repo.db.t.faqs, id)
	delete(repo.db.t.sectionAccess, id)
	for nid, n := range repo.db.t.notes {
		if n.FAQID == id {
			delete(repo.db.t.notes, nid)
		}
	}
	for cid, f := range repo.db.t.faqs {
		if f.ParentID == id {
			repo.deleteFAQ(cid)
		}
	}
}

func (repo *faqRepository) GetFAQ(_ context.Context, id string) (faq.FAQ, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if f, ok := repo.db.t.faqs[id]; ok {
		return f, nil
	}
	return faq.FAQ{}, faq.ErrNotFound
}

func (repo *faqRepository) QueryFAQs(context.Context) ([]faq.FAQ, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	faqs := make([]faq.FAQ, 0, len(repo.db.t.faqs))
	for _, f := range repo.db.t.faqs {
		faqs = append(faqs, f)
	}
	sort.Slice(faqs, func(i, j int) bool {
		a, b := faqs[i], faqs[j]
		if a.IsSection != b.IsSection {
			return a.IsSection
		}
		if a.OrderIndex != b.OrderIndex {
			return a.OrderIndex < b.OrderIndex
		}
		return a.Title < b.Title
	})
	return faqs, nil
}

func (repo *faqRepository) QuerySectionAccess(context.Context) (map[string][]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	access := make(map[string][]string, len(repo.db.t.sectionAccess))
	for sid, ids := range repo.db.t.sectionAccess {
		if len(ids) > 0 {
			access[sid] = append([]string{}, ids...)
		}
	}
	return access, nil
}

// SetSectionAccess ignores unknown groups.
func (repo *faqRepository) SetSectionAccess(ctx context.Context, sectionID string, groupIDs []string) error {
	defer repo.db.lock(ctx)()

	ids := make([]string, 0, len(groupIDs))
	for _, id := range groupIDs {
		if _, ok := repo.db.t.groups[id]; ok && !contains(ids, id) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		delete(repo.db.t.sectionAccess, sectionID)
		return nil
	}
	repo.db.t.sectionAccess[sectionID] = ids
	return nil
}

func (repo *faqRepository) withAuthor(n faq.Note) faq.Note {
	n.AuthorName = repo.db.t.users[n.UserID].Name
	return n
}

func (repo *faqRepository) CreateNote(ctx context.Context, n faq.Note) error {
	defer repo.db.lock(ctx)()
	if _, ok := repo.db.t.faqs[n.FAQID]; !ok {
		return faq.ErrNotFound
	}
	repo.db.t.notes[n.ID] = n
	return nil
}

func (repo *faqRepository) GetNote(_ context.Context, id string) (faq.Note, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if n, ok := repo.db.t.notes[id]; ok {
		return repo.withAuthor(n), nil
	}
	return faq.Note{}, faq.ErrNoteNotFound
}

func (repo *faqRepository) UpdateNote(ctx context.Context, n faq.Note) error {
	defer repo.db.lock(ctx)()
	orig, ok := repo.db.t.notes[n.ID]
	if !ok {
		return faq.ErrNoteNotFound
	}
	orig.Content = n.Content
	orig.UpdatedAt = n.UpdatedAt
	repo.db.t.notes[n.ID] = orig
	return nil
}

func (repo *faqRepository) DeleteNote(ctx context.Context, id string) error {
	defer repo.db.lock(ctx)()
	if _, ok := repo.db.t.notes[id]; !ok {
		return faq.ErrNoteNotFound
	}
	delete(repo.db.t.notes, id)
	return nil
}

func (repo *faqRepository) QueryNotes(_ context.Context, faqID string) ([]faq.Note, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	notes := make([]faq.Note, 0)
	for _, n := range repo.db.t.notes {
		if n.FAQID == faqID {
			notes = append(notes, repo.withAuthor(n))
		}
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].CreatedAt.Before(notes[j].CreatedAt) })
	return notes, nil
}
