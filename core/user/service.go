package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/newstandard/academy/core"
)

var (
	// errors
	ErrNotFound          = errors.New("user not found")
	ErrEmailExists       = errors.New("a user with this email already exists")
	ErrMFANotSetup       = errors.New("MFA has not been set up")
	ErrMFAAlreadyEnabled = errors.New("MFA is already enabled")
	ErrMFANotEnabled     = errors.New("MFA is not enabled")

	errInvalidMFACode   = "invalid authentication code"
	errInvalidResetLink = "invalid or expired link"
	errWrongPassword    = "wrong password"
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, orderings ...core.DBOrdering) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...string) error
	}

	Service interface {
		CheckUniqueness(ctx context.Context, email string, exclUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		Register(ctx context.Context, nu NewUser) (User, error)
		Query(ctx context.Context, filter *QueryFilter, orderings ...core.DBOrdering) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Update(ctx context.Context, id string, uu UpdateUser) (User, error)
		Delete(ctx context.Context, ids ...string) error
		SetLastLogin(ctx context.Context, usr User) (User, error)
		SetPassword(ctx context.Context, usr User, pwd string) (User, error)
		ChangePassword(ctx context.Context, usr User, data ChangePassword) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
		ConfirmEmail(ctx context.Context, data ConfirmEmail) error
		ResendConfirmation(ctx context.Context, email string) error
		SetupMFA(ctx context.Context, usr User) (MFASetup, error)
		EnableMFA(ctx context.Context, usr User, code string) error
		DisableMFA(ctx context.Context, usr User, pwd, code string) error
		MFAStatus(usr User) MFAStatus
		ValidateMFACode(usr User, code string) bool
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	return &service{repo: repo, mailSvc: mailSvc, conf: conf}
}

func (svc *service) CheckUniqueness(ctx context.Context, email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, exclUsers...); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return errors.Wrap(err, "checking email uniqueness")
	}
	return nil
}

func (svc *service) newUser(nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		Type:      nu.Type,
		IsActive:  true,
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if usr.Type == "" {
		usr.Type = TypeEmployee
	}
	if len(usr.Roles) == 0 {
		usr.Roles = []string{RoleLearner}
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return usr, nil
}

// Create adds a user on behalf of an admin; the email is trusted.
func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	usr, err := svc.newUser(nu)
	if err != nil {
		return User{}, err
	}
	usr.EmailConfirmed = true
	return svc.repo.CreateUser(ctx, usr)
}

// Register adds a self-registered learner and sends them an email confirmation link.
func (svc *service) Register(ctx context.Context, nu NewUser) (User, error) {
	nu.Roles = nil
	usr, err := svc.newUser(nu)
	if err != nil {
		return User{}, err
	}
	usr, err = svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "creating user")
	}
	if err := svc.sendConfirmEmailMail(usr); err != nil {
		return User{}, err
	}
	return usr, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, orderings ...core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, orderings...)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	usr.Name = uu.Name
	usr.Email = uu.Email
	usr.Type = uu.Type
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Roles != nil {
		usr.Roles = uu.Roles
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) ChangePassword(ctx context.Context, usr User, data ChangePassword) error {
	if err := usr.CheckPassword(data.CurrentPassword); err != nil {
		return core.NewFieldError("current_password", errWrongPassword)
	}
	_, err := svc.SetPassword(ctx, usr, data.Password)
	return err
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	return svc.sendPasswordResetMail(usr)
}

func (svc *service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	usr, err := svc.userFromUID(ctx, data.UID)
	if err != nil {
		return err
	}
	if err := newPasswordResetTokenGenerator(svc.conf).verifyToken(usr, data.Token); err != nil {
		return core.NewFieldError("token", errInvalidResetLink)
	}
	_, err = svc.SetPassword(ctx, usr, data.Password)
	return err
}

func (svc *service) ConfirmEmail(ctx context.Context, data ConfirmEmail) error {
	usr, err := svc.userFromUID(ctx, data.UID)
	if err != nil {
		return err
	}
	if err := newEmailConfirmTokenGenerator(svc.conf).verifyToken(usr, data.Token); err != nil {
		return core.NewFieldError("token", errInvalidResetLink)
	}
	usr.EmailConfirmed = true
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

func (svc *service) ResendConfirmation(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if usr.EmailConfirmed {
		return nil
	}
	return svc.sendConfirmEmailMail(usr)
}

// SetupMFA stores a new pending secret. MFA stays off until EnableMFA verifies a code against it.
func (svc *service) SetupMFA(ctx context.Context, usr User) (MFASetup, error) {
	if usr.MFAEnabled {
		return MFASetup{}, core.NewValidationError(ErrMFAAlreadyEnabled)
	}
	setup, err := generateMFAKey(svc.conf.AppName, usr)
	if err != nil {
		return MFASetup{}, err
	}
	usr.MFASecret = setup.Secret
	usr.UpdatedAt = time.Now().UTC()
	if _, err := svc.repo.UpdateUser(ctx, usr); err != nil {
		return MFASetup{}, errors.Wrap(err, "saving mfa secret")
	}
	return setup, nil
}

func (svc *service) EnableMFA(ctx context.Context, usr User, code string) error {
	if usr.MFAEnabled {
		return core.NewValidationError(ErrMFAAlreadyEnabled)
	}
	if usr.MFASecret == "" {
		return core.NewValidationError(ErrMFANotSetup)
	}
	if !validateMFACode(usr.MFASecret, code) {
		return core.NewFieldError("code", errInvalidMFACode)
	}
	usr.MFAEnabled = true
	usr.UpdatedAt = time.Now().UTC()
	_, err := svc.repo.UpdateUser(ctx, usr)
	return err
}

func (svc *service) DisableMFA(ctx context.Context, usr User, pwd, code string) error {
	if !usr.MFAEnabled {
		return core.NewValidationError(ErrMFANotEnabled)
	}
	if err := usr.CheckPassword(pwd); err != nil {
		return core.NewFieldError("password", errWrongPassword)
	}
	if !validateMFACode(usr.MFASecret, code) {
		return core.NewFieldError("code", errInvalidMFACode)
	}
	usr.MFAEnabled = false
	usr.MFASecret = ""
	usr.UpdatedAt = time.Now().UTC()
	_, err := svc.repo.UpdateUser(ctx, usr)
	return err
}

func (svc *service) MFAStatus(usr User) MFAStatus {
	return MFAStatus{Enabled: usr.MFAEnabled, Pending: !usr.MFAEnabled && usr.MFASecret != ""}
}

func (svc *service) ValidateMFACode(usr User, code string) bool {
	return usr.MFAEnabled && validateMFACode(usr.MFASecret, code)
}

func (svc *service) userFromUID(ctx context.Context, uid string) (User, error) {
	id, err := decodeUID(uid)
	if err != nil {
		return User{}, core.NewFieldError("uid", errInvalidResetLink)
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, core.NewFieldError("uid", errInvalidResetLink)
		}
		return User{}, err
	}
	return usr, nil
}

func (svc *service) sendPasswordResetMail(usr User) error {
	token, err := MakePasswordResetToken(svc.conf, usr)
	if err != nil {
		return errors.Wrap(err, "making password reset token")
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name":  usr.Name,
			"UID":   EncodeUID(usr),
			"Token": token,
		},
	})
	return nil
}

func (svc *service) sendConfirmEmailMail(usr User) error {
	token, err := MakeEmailConfirmToken(svc.conf, usr)
	if err != nil {
		return errors.Wrap(err, "making email confirmation token")
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Confirm your email",
		TemplateName: "confirm_email",
		TemplateData: map[string]interface{}{
			"Name":  usr.Name,
			"UID":   EncodeUID(usr),
			"Token": token,
		},
	})
	return nil
}
