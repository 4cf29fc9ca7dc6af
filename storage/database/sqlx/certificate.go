package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/newstandard/academy/core"
	"github.com/newstandard/academy/core/certificate"
)

const certificateDetailsQuery = `SELECT c.id, c.user_id, c.course_id, c.certificate_number, c.issued_at,
		u.name AS holder_name, u.email AS holder_email, co.title AS course_title
	FROM certificates c
	JOIN users u ON u.id = c.user_id
	JOIN courses co ON co.id = c.course_id`

type certificateRow struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	CourseID    string    `db:"course_id"`
	Number      string    `db:"certificate_number"`
	IssuedAt    time.Time `db:"issued_at"`
	HolderName  string    `db:"holder_name"`
	HolderEmail string    `db:"holder_email"`
	CourseTitle string    `db:"course_title"`
}

func (r certificateRow) toCertificate() certificate.Certificate {
	return certificate.Certificate{
		ID:       r.ID,
		UserID:   r.UserID,
		CourseID: r.CourseID,
		Number:   r.Number,
		IssuedAt: r.IssuedAt.UTC(),
	}
}

func (r certificateRow) toDetails() certificate.Details {
	return certificate.Details{
		Certificate: r.toCertificate(),
		HolderName:  r.HolderName,
		HolderEmail: r.HolderEmail,
		CourseTitle: r.CourseTitle,
	}
}

type certificateRepository struct {
	db *sqlx.DB
}

var _ certificate.Repository = (*certificateRepository)(nil)

func NewCertificateRepository(db *sqlx.DB) certificate.Repository {
	return &certificateRepository{db: db}
}

func (repo *certificateRepository) GetByUserCourse(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (certificate.Certificate, error) {
	var row certificateRow
	q := "SELECT id, user_id, course_id, certificate_number, issued_at FROM certificates WHERE user_id = $1 AND course_id = $2"
	if err := sqlx.GetContext(ctx, extOf(repo.db, exec), &row, q, userID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return certificate.Certificate{}, certificate.ErrNotFound
		}
		return certificate.Certificate{}, errors.Wrap(err, "selecting certificate")
	}
	return row.toCertificate(), nil
}

func (repo *certificateRepository) Create(ctx context.Context, cert certificate.Certificate, exec ...core.DBExecutor) (bool, error) {
	q := `INSERT INTO certificates (id, user_id, course_id, certificate_number, issued_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, course_id) DO NOTHING`
	res, err := extOf(repo.db, exec).ExecContext(ctx, q, cert.ID, cert.UserID, cert.CourseID, cert.Number, cert.IssuedAt)
	if err != nil {
		if uniqueViolationOn(err, "certificates_number_key") {
			return false, certificate.ErrNumberTaken
		}
		return false, errors.Wrap(err, "inserting certificate")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "counting affected rows")
	}
	return n == 1, nil
}

func (repo *certificateRepository) GetDetails(ctx context.Context, number string) (certificate.Details, error) {
	var row certificateRow
	if err := repo.db.GetContext(ctx, &row, certificateDetailsQuery+" WHERE c.certificate_number = $1", number); err != nil {
		if err == sql.ErrNoRows {
			return certificate.Details{}, certificate.ErrNotFound
		}
		return certificate.Details{}, errors.Wrap(err, "selecting certificate")
	}
	return row.toDetails(), nil
}

func (repo *certificateRepository) QueryDetails(ctx context.Context, filter certificate.QueryFilter) ([]certificate.Details, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if (filter.UserID != "" && !isUUID(filter.UserID)) || (filter.CourseID != "" && !isUUID(filter.CourseID)) {
		return []certificate.Details{}, nil
	}
	if filter.UserID != "" {
		conds = append(conds, "c.user_id = "+arg(filter.UserID))
	}
	if filter.CourseID != "" {
		conds = append(conds, "c.course_id = "+arg(filter.CourseID))
	}
	if !filter.From.IsZero() {
		conds = append(conds, "c.issued_at >= "+arg(filter.From))
	}
	if !filter.To.IsZero() {
		conds = append(conds, "c.issued_at <= "+arg(filter.To))
	}

	q := certificateDetailsQuery
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY c.issued_at DESC"

	var rows []certificateRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting certificates")
	}
	certs := make([]certificate.Details, 0, len(rows))
	for _, r := range rows {
		certs = append(certs, r.toDetails())
	}
	return certs, nil
}
