package inmemdb

import (
	"context"
	"sort"

	"github.com/newstandard/academy/core"
	"github.com/newstandard/academy/core/certificate"
)

type certificateRepository struct {
	db *DB
}

var _ certificate.Repository = (*certificateRepository)(nil)

func NewCertificateRepository(db *DB) certificate.Repository {
	return &certificateRepository{db: db}
}

func (repo *certificateRepository) GetByUserCourse(_ context.Context, userID, courseID string, _ ...core.DBExecutor) (certificate.Certificate, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	for _, cert := range repo.db.t.certificates {
		if cert.UserID == userID && cert.CourseID == courseID {
			return cert, nil
		}
	}
	return certificate.Certificate{}, certificate.ErrNotFound
}

func (repo *certificateRepository) Create(ctx context.Context, cert certificate.Certificate, _ ...core.DBExecutor) (bool, error) {
	defer repo.db.lock(ctx)()

	for _, c := range repo.db.t.certificates {
		if c.UserID == cert.UserID && c.CourseID == cert.CourseID {
			return false, nil
		}
	}
	for _, c := range repo.db.t.certificates {
		if c.Number == cert.Number {
			return false, certificate.ErrNumberTaken
		}
	}
	repo.db.t.certificates[cert.ID] = cert
	return true, nil
}

func (repo *certificateRepository) details(cert certificate.Certificate) certificate.Details {
	usr := repo.db.t.users[cert.UserID]
	return certificate.Details{
		Certificate: cert,
		HolderName:  usr.Name,
		HolderEmail: usr.Email,
		CourseTitle: repo.db.t.courses[cert.CourseID].Title,
	}
}

func (repo *certificateRepository) GetDetails(_ context.Context, number string) (certificate.Details, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	for _, cert := range repo.db.t.certificates {
		if cert.Number == number {
			return repo.details(cert), nil
		}
	}
	return certificate.Details{}, certificate.ErrNotFound
}

func (repo *certificateRepository) QueryDetails(_ context.Context, filter certificate.QueryFilter) ([]certificate.Details, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	certs := make([]certificate.Details, 0)
	for _, cert := range repo.db.t.certificates {
		switch {
		case filter.UserID != "" && cert.UserID != filter.UserID,
			filter.CourseID != "" && cert.CourseID != filter.CourseID,
			!filter.From.IsZero() && cert.IssuedAt.Before(filter.From),
			!filter.To.IsZero() && cert.IssuedAt.After(filter.To):
			continue
		}
		certs = append(certs, repo.details(cert))
	}
	sort.Slice(certs, func(i, j int) bool { return certs[i].IssuedAt.After(certs[j].IssuedAt) })
	return certs, nil
}
