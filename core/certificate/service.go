package certificate

import (
	"context"
	"net/mail"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/newstandard/academy/core"
)

const maxNumberTries = 5

var (
	// errors
	ErrNotFound        = errors.New("certificate not found")
	ErrNumberTaken     = errors.New("certificate number already taken")
	ErrNumberExhausted = errors.New("could not generate a unique certificate number")
)

// EventIssued is published after a certificate is created.
const EventIssued = "certificate.issued"

type (
	Repository interface {
		GetByUserCourse(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (Certificate, error)
		// Create inserts cert unless one already exists for (UserID, CourseID), in which case it reports false.
		// A number collision is reported as ErrNumberTaken.
		Create(ctx context.Context, cert Certificate, exec ...core.DBExecutor) (bool, error)
		GetDetails(ctx context.Context, number string) (Details, error)
		QueryDetails(ctx context.Context, filter QueryFilter) ([]Details, error)
	}

	// Issuer creates a course's certificate for a user, once.
	Issuer interface {
		Issue(ctx context.Context, userID, courseID string) (Certificate, error)
	}

	Observer interface {
		CertificateIssued(cert Certificate)
	}

	Service interface {
		Issuer
		ForUser(ctx context.Context, userID string) ([]Details, error)
		Query(ctx context.Context, filter QueryFilter) ([]Details, error)
		Verify(ctx context.Context, number string) (Verification, error)
	}

	service struct {
		repo      Repository
		mailSvc   core.EmailService
		publisher core.EventPublisher
		observer  Observer
		logger    core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	mailSvc core.EmailService,
	publisher core.EventPublisher,
	observer Observer,
	logger core.Logger,
) Service {
	return &service{
		repo:      repo,
		mailSvc:   mailSvc,
		publisher: publisher,
		observer:  observer,
		logger:    logger,
	}
}

// Issue returns the user's certificate for the course, creating it if there is none yet.
func (svc *service) Issue(ctx context.Context, userID, courseID string) (Certificate, error) {
	cert, err := svc.repo.GetByUserCourse(ctx, userID, courseID)
	if err == nil {
		return cert, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return Certificate{}, errors.Wrap(err, "finding certificate")
	}

	for i := 0; i < maxNumberTries; i++ {
		now := NowFunc().UTC()
		number, err := numberFunc(now)
		if err != nil {
			return Certificate{}, errors.Wrap(err, "generating certificate number")
		}
		cert = Certificate{
			ID:       uuid.New().String(),
			UserID:   userID,
			CourseID: courseID,
			Number:   number,
			IssuedAt: now,
		}

		created, err := svc.repo.Create(ctx, cert)
		if errors.Cause(err) == ErrNumberTaken {
			continue
		}
		if err != nil {
			return Certificate{}, errors.Wrap(err, "creating certificate")
		}
		if !created {
			// issued concurrently
			return svc.repo.GetByUserCourse(ctx, userID, courseID)
		}

		svc.notify(ctx, cert)
		return cert, nil
	}
	return Certificate{}, ErrNumberExhausted
}

func (svc *service) notify(ctx context.Context, cert Certificate) {
	if svc.observer != nil {
		svc.observer.CertificateIssued(cert)
	}

	if err := svc.publisher.Publish(ctx, EventIssued, cert); err != nil {
		svc.logger.Error("publishing certificate event", errors.Wrap(err, "publishing "+EventIssued))
	}

	det, err := svc.repo.GetDetails(ctx, cert.Number)
	if err != nil {
		svc.logger.Error("loading certificate details", errors.Wrap(err, "loading certificate "+cert.Number))
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: det.HolderName, Address: det.HolderEmail}},
		Subject:      "Your certificate for " + det.CourseTitle,
		TemplateName: "certificate_issued",
		TemplateData: map[string]interface{}{
			"HolderName":  det.HolderName,
			"CourseTitle": det.CourseTitle,
			"Number":      det.Number,
		},
	})
}

func (svc *service) ForUser(ctx context.Context, userID string) ([]Details, error) {
	return svc.repo.QueryDetails(ctx, QueryFilter{UserID: userID})
}

func (svc *service) Query(ctx context.Context, filter QueryFilter) ([]Details, error) {
	return svc.repo.QueryDetails(ctx, filter)
}

func (svc *service) Verify(ctx context.Context, number string) (Verification, error) {
	det, err := svc.repo.GetDetails(ctx, core.CleanString(number))
	if err != nil {
		return Verification{}, err
	}
	return Verification{
		Number:      det.Number,
		HolderName:  det.HolderName,
		CourseTitle: det.CourseTitle,
		IssuedAt:    det.IssuedAt,
	}, nil
}
