package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/newstandard/academy/core/faq"
)

const faqColumns = "id, title, description, target_audience, parent_id, is_section, pdf_object, order_index, created_at, updated_at"

type faqRow struct {
	ID             string      `db:"id"`
	Title          string      `db:"title"`
	Description    string      `db:"description"`
	TargetAudience string      `db:"target_audience"`
	ParentID       null.String `db:"parent_id"`
	IsSection      bool        `db:"is_section"`
	PDFObject      null.String `db:"pdf_object"`
	OrderIndex     int         `db:"order_index"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

func newFAQRow(f faq.FAQ) faqRow {
	return faqRow{
		ID:             f.ID,
		Title:          f.Title,
		Description:    f.Description,
		TargetAudience: f.TargetAudience,
		ParentID:       nullID(f.ParentID),
		IsSection:      f.IsSection,
		PDFObject:      null.NewString(f.PDFObject, f.PDFObject != ""),
		OrderIndex:     f.OrderIndex,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
}

func (r faqRow) toFAQ() faq.FAQ {
	return faq.FAQ{
		ID:             r.ID,
		Title:          r.Title,
		Description:    r.Description,
		TargetAudience: r.TargetAudience,
		ParentID:       r.ParentID.String,
		IsSection:      r.IsSection,
		PDFObject:      r.PDFObject.String,
		HasDocument:    r.PDFObject.Valid && r.PDFObject.String != "",
		OrderIndex:     r.OrderIndex,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

type noteRow struct {
	ID         string    `db:"id"`
	FAQID      string    `db:"faq_id"`
	UserID     string    `db:"user_id"`
	AuthorName string    `db:"author_name"`
	Content    string    `db:"content"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r noteRow) toNote() faq.Note {
	return faq.Note{
		ID:         r.ID,
		FAQID:      r.FAQID,
		UserID:     r.UserID,
		AuthorName: r.AuthorName,
		Content:    r.Content,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

const noteQuery = `SELECT n.id, n.faq_id, n.user_id, u.name AS author_name, n.content, n.created_at, n.updated_at
	FROM faq_notes n
	JOIN users u ON u.id = n.user_id`

type faqRepository struct {
	db *sqlx.DB
}

var _ faq.Repository = (*faqRepository)(nil)

func NewFAQRepository(db *sqlx.DB) faq.Repository {
	return &faqRepository{db: db}
}

func (repo *faqRepository) CreateFAQ(ctx context.Context, f faq.FAQ) error {
	q := `INSERT INTO faqs (` + faqColumns + `)
		VALUES (:id, :title, :description, :target_audience, :parent_id, :is_section, :pdf_object, :order_index,
			:created_at, :updated_at)`
	_, err := repo.db.NamedExecContext(ctx, q, newFAQRow(f))
	return errors.Wrap(err, "inserting faq")
}

func (repo *faqRepository) UpdateFAQ(ctx context.Context, f faq.FAQ) error {
	q := `UPDATE faqs SET title = :title, description = :description, target_audience = :target_audience,
		pdf_object = :pdf_object, order_index = :order_index, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, newFAQRow(f))
	if err != nil {
		return errors.Wrap(err, "updating faq")
	}
	return expectRow(res, faq.ErrNotFound)
}

// DeleteFAQ removes the entry; children, notes and access rows go with it.
func (repo *faqRepository) DeleteFAQ(ctx context.Context, id string) error {
	if !isUUID(id) {
		return faq.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, "DELETE FROM faqs WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting faq")
	}
	return expectRow(res, faq.ErrNotFound)
}

func (repo *faqRepository) GetFAQ(ctx context.Context, id string) (faq.FAQ, error) {
	if !isUUID(id) {
		return faq.FAQ{}, faq.ErrNotFound
	}
	var row faqRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+faqColumns+" FROM faqs WHERE id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return faq.FAQ{}, faq.ErrNotFound
		}
		return faq.FAQ{}, errors.Wrap(err, "selecting faq")
	}
	return row.toFAQ(), nil
}

// QueryFAQs lists sections before entries.
func (repo *faqRepository) QueryFAQs(ctx context.Context) ([]faq.FAQ, error) {
	var rows []faqRow
	q := "SELECT " + faqColumns + " FROM faqs ORDER BY is_section DESC, order_index, title"
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting faqs")
	}
	faqs := make([]faq.FAQ, 0, len(rows))
	for _, r := range rows {
		faqs = append(faqs, r.toFAQ())
	}
	return faqs, nil
}

func (repo *faqRepository) QuerySectionAccess(ctx context.Context) (map[string][]string, error) {
	rows, err := repo.db.QueryxContext(ctx, "SELECT faq_section_id, group_id FROM faq_section_access")
	if err != nil {
		return nil, errors.Wrap(err, "selecting section access")
	}
	defer func() { _ = rows.Close() }()

	access := make(map[string][]string)
	for rows.Next() {
		var sectionID, groupID string
		if err := rows.Scan(&sectionID, &groupID); err != nil {
			return nil, errors.Wrap(err, "scanning section access")
		}
		access[sectionID] = append(access[sectionID], groupID)
	}
	return access, errors.Wrap(rows.Err(), "iterating section access")
}

func (repo *faqRepository) SetSectionAccess(ctx context.Context, sectionID string, groupIDs []string) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM faq_section_access WHERE faq_section_id = $1", sectionID); err != nil {
		return errors.Wrap(err, "clearing section access")
	}
	if len(groupIDs) > 0 {
		q := `INSERT INTO faq_section_access (faq_section_id, group_id)
			SELECT $1, g.id FROM groups g WHERE g.id = ANY($2::uuid[])
			ON CONFLICT DO NOTHING`
		if _, err := tx.ExecContext(ctx, q, sectionID, pq.StringArray(groupIDs)); err != nil {
			return errors.Wrap(err, "inserting section access")
		}
	}
	return errors.Wrap(tx.Commit(), "committing section access")
}

func (repo *faqRepository) CreateNote(ctx context.Context, n faq.Note) error {
	q := "INSERT INTO faq_notes (id, faq_id, user_id, content, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)"
	_, err := repo.db.ExecContext(ctx, q, n.ID, n.FAQID, n.UserID, n.Content, n.CreatedAt, n.UpdatedAt)
	return errors.Wrap(err, "inserting note")
}

func (repo *faqRepository) GetNote(ctx context.Context, id string) (faq.Note, error) {
	if !isUUID(id) {
		return faq.Note{}, faq.ErrNoteNotFound
	}
	var row noteRow
	if err := repo.db.GetContext(ctx, &row, noteQuery+" WHERE n.id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return faq.Note{}, faq.ErrNoteNotFound
		}
		return faq.Note{}, errors.Wrap(err, "selecting note")
	}
	return row.toNote(), nil
}

func (repo *faqRepository) UpdateNote(ctx context.Context, n faq.Note) error {
	res, err := repo.db.ExecContext(ctx, "UPDATE faq_notes SET content = $1, updated_at = $2 WHERE id = $3", n.Content, n.UpdatedAt, n.ID)
	if err != nil {
		return errors.Wrap(err, "updating note")
	}
	return expectRow(res, faq.ErrNoteNotFound)
}

func (repo *faqRepository) DeleteNote(ctx context.Context, id string) error {
	if !isUUID(id) {
		return faq.ErrNoteNotFound
	}
	res, err := repo.db.ExecContext(ctx, "DELETE FROM faq_notes WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting note")
	}
	return expectRow(res, faq.ErrNoteNotFound)
}

func (repo *faqRepository) QueryNotes(ctx context.Context, faqID string) ([]faq.Note, error) {
	var rows []noteRow
	if err := repo.db.SelectContext(ctx, &rows, noteQuery+" WHERE n.faq_id = $1 ORDER BY n.created_at", faqID); err != nil {
		return nil, errors.Wrap(err, "selecting notes")
	}
	notes := make([]faq.Note, 0, len(rows))
	for _, r := range rows {
		notes = append(notes, r.toNote())
	}
	return notes, nil
}
