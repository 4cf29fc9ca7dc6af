package faq

import (
	"context"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/newstandard/academy/core"
	"github.com/newstandard/academy/core/user"
)

var (
	// errors
	ErrNotFound       = errors.New("faq not found")
	ErrNoteNotFound   = errors.New("note not found")
	ErrNoDocument     = errors.New("faq has no document")
	ErrNotPDF         = errors.New("only PDF documents are accepted")
	ErrParentNotFound = errors.New("parent section not found")

	errNestedSection       = "a section cannot have a parent"
	errEntryWithoutSection = "an entry must belong to a section"
)

type (
	Repository interface {
		CreateFAQ(ctx context.Context, f FAQ) error
		UpdateFAQ(ctx context.Context, f FAQ) error
		DeleteFAQ(ctx context.Context, id string) error
		GetFAQ(ctx context.Context, id string) (FAQ, error)
		QueryFAQs(ctx context.Context) ([]FAQ, error)

		// QuerySectionAccess returns the groups allowed on each restricted section.
		QuerySectionAccess(ctx context.Context) (map[string][]string, error)
		SetSectionAccess(ctx context.Context, sectionID string, groupIDs []string) error

		CreateNote(ctx context.Context, n Note) error
		GetNote(ctx context.Context, id string) (Note, error)
		UpdateNote(ctx context.Context, n Note) error
		DeleteNote(ctx context.Context, id string) error
		QueryNotes(ctx context.Context, faqID string) ([]Note, error)
	}

	// ObjectStore keeps the PDF documents.
	ObjectStore interface {
		PutObject(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
		PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
		RemoveObject(ctx context.Context, key string) error
	}

	GroupLookup interface {
		GroupIDsOf(ctx context.Context, userID string) ([]string, error)
	}

	Service interface {
		Create(ctx context.Context, nf NewFAQ) (FAQ, error)
		Update(ctx context.Context, id string, uf UpdateFAQ) (FAQ, error)
		Delete(ctx context.Context, id string) error
		GetRaw(ctx context.Context, id string) (FAQ, error)
		Get(ctx context.Context, usr user.User, id string) (FAQ, error)
		ListForUser(ctx context.Context, usr user.User) ([]FAQ, error)
		SetSectionAccess(ctx context.Context, sectionID string, groupIDs []string) error
		UploadDocument(ctx context.Context, id string, r io.Reader, size int64, contentType string) (FAQ, error)
		Document(ctx context.Context, usr user.User, id string) (Document, error)

		Notes(ctx context.Context, usr user.User, faqID string) ([]Note, error)
		AddNote(ctx context.Context, usr user.User, faqID, content string) (Note, error)
		EditNote(ctx context.Context, usr user.User, noteID, content string) (old Note, updated Note, err error)
		DeleteNote(ctx context.Context, usr user.User, noteID string) (Note, error)
	}

	service struct {
		repo          Repository
		store         ObjectStore
		groups        GroupLookup
		presignExpiry time.Duration
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, store ObjectStore, groups GroupLookup, conf *core.Config) Service {
	return &service{
		repo:          repo,
		store:         store,
		groups:        groups,
		presignExpiry: conf.Storage.PresignExpiry,
	}
}

func (svc *service) Create(ctx context.Context, nf NewFAQ) (FAQ, error) {
	if nf.ParentID != "" {
		parent, err := svc.repo.GetFAQ(ctx, nf.ParentID)
		if err != nil || !parent.IsSection {
			if err == nil || errors.Cause(err) == ErrNotFound {
				return FAQ{}, core.NewFieldError("parent_id", ErrParentNotFound.Error())
			}
			return FAQ{}, err
		}
	}
	now := time.Now().UTC()
	f := FAQ{
		ID:             uuid.New().String(),
		Title:          nf.Title,
		Description:    nf.Description,
		TargetAudience: nf.TargetAudience,
		ParentID:       nf.ParentID,
		IsSection:      nf.IsSection,
		OrderIndex:     nf.OrderIndex,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := svc.repo.CreateFAQ(ctx, f); err != nil {
		return FAQ{}, errors.Wrap(err, "creating faq")
	}
	return f, nil
}

func (svc *service) Update(ctx context.Context, id string, uf UpdateFAQ) (FAQ, error) {
	f, err := svc.repo.GetFAQ(ctx, id)
	if err != nil {
		return FAQ{}, err
	}
	f.Title = uf.Title
	f.Description = uf.Description
	f.TargetAudience = uf.TargetAudience
	if uf.OrderIndex != nil {
		f.OrderIndex = *uf.OrderIndex
	}
	f.UpdatedAt = time.Now().UTC()
	if err := svc.repo.UpdateFAQ(ctx, f); err != nil {
		return FAQ{}, errors.Wrap(err, "updating faq")
	}
	return f, nil
}

func (svc *service) Delete(ctx context.Context, id string) error {
	f, err := svc.repo.GetFAQ(ctx, id)
	if err != nil {
		return err
	}
	if err := svc.repo.DeleteFAQ(ctx, id); err != nil {
		return errors.Wrap(err, "deleting faq")
	}
	if f.PDFObject != "" {
		if err := svc.store.RemoveObject(ctx, f.PDFObject); err != nil {
			return errors.Wrap(err, "removing document")
		}
	}
	return nil
}

func (svc *service) GetRaw(ctx context.Context, id string) (FAQ, error) {
	return svc.repo.GetFAQ(ctx, id)
}

// visibleFilter reports which entries usr may see. Sections without access rows are open to all.
func (svc *service) visibleFilter(ctx context.Context, usr user.User) (func(FAQ) bool, error) {
	if usr.IsAdmin() {
		return func(FAQ) bool { return true }, nil
	}
	access, err := svc.repo.QuerySectionAccess(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying section access")
	}
	groupIDs, err := svc.groups.GroupIDsOf(ctx, usr.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying user groups")
	}
	mine := make(map[string]bool, len(groupIDs))
	for _, id := range groupIDs {
		mine[id] = true
	}
	return func(f FAQ) bool {
		allowed, restricted := access[f.sectionID()]
		if !restricted || len(allowed) == 0 {
			return true
		}
		for _, gid := range allowed {
			if mine[gid] {
				return true
			}
		}
		return false
	}, nil
}

func (svc *service) Get(ctx context.Context, usr user.User, id string) (FAQ, error) {
	f, err := svc.repo.GetFAQ(ctx, id)
	if err != nil {
		return FAQ{}, err
	}
	visible, err := svc.visibleFilter(ctx, usr)
	if err != nil {
		return FAQ{}, err
	}
	if !visible(f) {
		return FAQ{}, ErrNotFound
	}
	return f, nil
}

func (svc *service) ListForUser(ctx context.Context, usr user.User) ([]FAQ, error) {
	faqs, err := svc.repo.QueryFAQs(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying faqs")
	}
	visible, err := svc.visibleFilter(ctx, usr)
	if err != nil {
		return nil, err
	}
	out := make([]FAQ, 0, len(faqs))
	for _, f := range faqs {
		if visible(f) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (svc *service) SetSectionAccess(ctx context.Context, sectionID string, groupIDs []string) error {
	f, err := svc.repo.GetFAQ(ctx, sectionID)
	if err != nil {
		return err
	}
	if !f.IsSection {
		return ErrNotFound
	}
	return svc.repo.SetSectionAccess(ctx, sectionID, groupIDs)
}

func (svc *service) UploadDocument(ctx context.Context, id string, r io.Reader, size int64, contentType string) (FAQ, error) {
	if contentType != PDFContentType {
		return FAQ{}, core.NewValidationError(ErrNotPDF)
	}
	f, err := svc.repo.GetFAQ(ctx, id)
	if err != nil {
		return FAQ{}, err
	}

	key := path.Join("faqs", f.ID, uuid.New().String()+".pdf")
	if err := svc.store.PutObject(ctx, key, r, size, contentType); err != nil {
		return FAQ{}, errors.Wrap(err, "storing document")
	}
	prev := f.PDFObject
	f.PDFObject = key
	f.HasDocument = true
	f.UpdatedAt = time.Now().UTC()
	if err := svc.repo.UpdateFAQ(ctx, f); err != nil {
		return FAQ{}, errors.Wrap(err, "updating faq")
	}
	if prev != "" {
		if err := svc.store.RemoveObject(ctx, prev); err != nil {
			return FAQ{}, errors.Wrap(err, "removing previous document")
		}
	}
	return f, nil
}

func (svc *service) Document(ctx context.Context, usr user.User, id string) (Document, error) {
	f, err := svc.Get(ctx, usr, id)
	if err != nil {
		return Document{}, err
	}
	if f.PDFObject == "" {
		return Document{}, ErrNoDocument
	}
	url, err := svc.store.PresignedURL(ctx, f.PDFObject, svc.presignExpiry)
	if err != nil {
		return Document{}, errors.Wrap(err, "presigning document url")
	}
	return Document{URL: url, ExpiresAt: time.Now().UTC().Add(svc.presignExpiry)}, nil
}

func (svc *service) Notes(ctx context.Context, usr user.User, faqID string) ([]Note, error) {
	if _, err := svc.Get(ctx, usr, faqID); err != nil {
		return nil, err
	}
	return svc.repo.QueryNotes(ctx, faqID)
}

func (svc *service) AddNote(ctx context.Context, usr user.User, faqID, content string) (Note, error) {
	if _, err := svc.Get(ctx, usr, faqID); err != nil {
		return Note{}, err
	}
	now := time.Now().UTC()
	n := Note{
		ID:         uuid.New().String(),
		FAQID:      faqID,
		UserID:     usr.ID,
		AuthorName: usr.Name,
		Content:    content,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := svc.repo.CreateNote(ctx, n); err != nil {
		return Note{}, errors.Wrap(err, "creating note")
	}
	return n, nil
}

// ownNote returns the note if usr wrote it; admins may touch any note when anyAdmin is set.
func (svc *service) ownNote(ctx context.Context, usr user.User, noteID string, anyAdmin bool) (Note, error) {
	n, err := svc.repo.GetNote(ctx, noteID)
	if err != nil {
		return Note{}, err
	}
	if n.UserID != usr.ID && !(anyAdmin && usr.IsAdmin()) {
		return Note{}, core.ErrPermissionDenied
	}
	return n, nil
}

func (svc *service) EditNote(ctx context.Context, usr user.User, noteID, content string) (Note, Note, error) {
	old, err := svc.ownNote(ctx, usr, noteID, false)
	if err != nil {
		return Note{}, Note{}, err
	}
	n := old
	n.Content = content
	n.UpdatedAt = time.Now().UTC()
	if err := svc.repo.UpdateNote(ctx, n); err != nil {
		return Note{}, Note{}, errors.Wrap(err, "updating note")
	}
	return old, n, nil
}

func (svc *service) DeleteNote(ctx context.Context, usr user.User, noteID string) (Note, error) {
	n, err := svc.ownNote(ctx, usr, noteID, true)
	if err != nil {
		return Note{}, err
	}
	if err := svc.repo.DeleteNote(ctx, noteID); err != nil {
		return Note{}, errors.Wrap(err, "deleting note")
	}
	return n, nil
}
