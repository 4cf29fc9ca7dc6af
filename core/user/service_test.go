package user_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newstandard/academy/core"
	"github.com/newstandard/academy/core/user"
	"github.com/newstandard/academy/storage/database/inmem"
	"github.com/newstandard/academy/tests"
)

type mailMock struct {
	mu   sync.Mutex
	sent []*core.EmailMessage
}

func (m *mailMock) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	m.sent = append(m.sent, messages...)
	m.mu.Unlock()
}

func (m *mailMock) last(t *testing.T, tmpl string) map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].TemplateName == tmpl {
			return m.sent[i].TemplateData.(map[string]interface{})
		}
	}
	t.Fatalf("no %s email sent", tmpl)
	return nil
}

func setup(t *testing.T) (user.Service, user.Repository, *mailMock) {
	repo := inmemdb.NewUserRepository(inmemdb.Open())
	mail := new(mailMock)
	return user.NewService(repo, mail, testutil.NewConfig()), repo, mail
}

func TestService_RegisterAndConfirm(t *testing.T) {
	svc, _, mail := setup(t)
	ctx := context.Background()

	usr, err := svc.Register(ctx, user.NewUser{
		Name:     "Jane",
		Email:    "jane@test.cd",
		Password: "Secr3t!Pass",
		Roles:    []string{user.RoleAdmin}, // ignored
	})
	require.NoError(t, err)
	assert.Equal(t, []string{user.RoleLearner}, usr.Roles)
	assert.Equal(t, user.TypeEmployee, usr.Type)
	assert.True(t, usr.IsActive)
	assert.False(t, usr.EmailConfirmed)

	data := mail.last(t, "confirm_email")
	confirm := user.ConfirmEmail{UID: data["UID"].(string), Token: data["Token"].(string)}

	require.NoError(t, svc.ConfirmEmail(ctx, confirm))
	usr, err = svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.True(t, usr.EmailConfirmed)

	// one-time link
	assert.Error(t, svc.ConfirmEmail(ctx, confirm))
	assert.Error(t, svc.ConfirmEmail(ctx, user.ConfirmEmail{UID: "garbage", Token: confirm.Token}))

	// nothing to resend once confirmed
	n := len(mail.sent)
	require.NoError(t, svc.ResendConfirmation(ctx, "JANE@test.cd"))
	assert.Len(t, mail.sent, n)
}

func TestService_Create(t *testing.T) {
	svc, _, mail := setup(t)
	ctx := context.Background()

	usr, err := svc.Create(ctx, user.NewUser{
		Name:     "Leader",
		Email:    "leader@test.cd",
		Type:     user.TypeClient,
		Password: "Secr3t!Pass",
		Roles:    []string{user.RoleLeader},
	})
	require.NoError(t, err)
	assert.True(t, usr.EmailConfirmed)
	assert.Equal(t, user.TypeClient, usr.Type)
	assert.Equal(t, []string{user.RoleLeader}, usr.Roles)
	assert.Empty(t, mail.sent)

	err = svc.CheckUniqueness(ctx, "leader@test.cd")
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr), "error = %v", err)
	assert.Equal(t, map[string]string{"email": user.ErrEmailExists.Error()}, verr.FieldMap())
	assert.NoError(t, svc.CheckUniqueness(ctx, "leader@test.cd", usr))
}

func TestService_PasswordReset(t *testing.T) {
	svc, repo, mail := setup(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, repo, "Jane", "jane@test.cd", "Old!Pass1")
	testutil.CreateUser(t, repo, "Gone", "gone@test.cd", "Old!Pass1", testutil.UserOpts{Inactive: true})

	assert.Equal(t, user.ErrNotFound, svc.RequestPasswordReset(ctx, "nobody@test.cd"))
	assert.Equal(t, user.ErrNotFound, svc.RequestPasswordReset(ctx, "gone@test.cd"))
	require.NoError(t, svc.RequestPasswordReset(ctx, "jane@test.cd"))

	data := mail.last(t, "password_reset")
	reset := user.ResetUserPassword{
		UID:             data["UID"].(string),
		Token:           data["Token"].(string),
		Password:        "New!Pass2",
		PasswordConfirm: "New!Pass2",
	}
	assert.Error(t, svc.ResetPassword(ctx, user.ResetUserPassword{UID: reset.UID, Token: "nope-nope-nope"}))
	require.NoError(t, svc.ResetPassword(ctx, reset))

	usr, err := svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword("New!Pass2"))

	// the token dies with the old password
	assert.Error(t, svc.ResetPassword(ctx, reset))
}

func TestService_ChangePassword(t *testing.T) {
	svc, repo, _ := setup(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, repo, "Jane", "jane@test.cd", "Old!Pass1")

	err := svc.ChangePassword(ctx, usr, user.ChangePassword{CurrentPassword: "wrong", Password: "New!Pass2"})
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr), "error = %v", err)
	assert.Contains(t, verr.FieldMap(), "current_password")

	require.NoError(t, svc.ChangePassword(ctx, usr, user.ChangePassword{CurrentPassword: "Old!Pass1", Password: "New!Pass2"}))
	usr, err = svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword("New!Pass2"))
}

func TestService_MFA(t *testing.T) {
	svc, repo, _ := setup(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, repo, "Jane", "jane@test.cd", "Secr3t!Pass")

	assert.Equal(t, user.MFAStatus{}, svc.MFAStatus(usr))
	assert.Error(t, svc.EnableMFA(ctx, usr, "123456"))

	key, err := svc.SetupMFA(ctx, usr)
	require.NoError(t, err)
	assert.NotEmpty(t, key.Secret)
	assert.Contains(t, key.OTPAuthURL, "otpauth://totp/")

	usr, err = svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, user.MFAStatus{Pending: true}, svc.MFAStatus(usr))
	assert.False(t, svc.ValidateMFACode(usr, "000000"))

	code, err := totp.GenerateCode(key.Secret, time.Now().UTC())
	require.NoError(t, err)

	assert.Error(t, svc.EnableMFA(ctx, usr, "abc"))
	require.NoError(t, svc.EnableMFA(ctx, usr, code))

	usr, err = svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, user.MFAStatus{Enabled: true}, svc.MFAStatus(usr))
	assert.True(t, svc.ValidateMFACode(usr, code))

	_, err = svc.SetupMFA(ctx, usr)
	assert.Error(t, err)

	assert.Error(t, svc.DisableMFA(ctx, usr, "wrong", code))
	require.NoError(t, svc.DisableMFA(ctx, usr, "Secr3t!Pass", code))

	usr, err = svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.False(t, usr.MFAEnabled)
	assert.Empty(t, usr.MFASecret)
}

func TestService_Update(t *testing.T) {
	svc, repo, _ := setup(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, repo, "Jane", "jane@test.cd", "")

	inactive := false
	upd, err := svc.Update(ctx, usr.ID, user.UpdateUser{
		Name:     "Jane D",
		Email:    "jane.d@test.cd",
		Type:     user.TypeClient,
		IsActive: &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, "Jane D", upd.Name)
	assert.Equal(t, "jane.d@test.cd", upd.Email)
	assert.Equal(t, user.TypeClient, upd.Type)
	assert.False(t, upd.IsActive)
	assert.Equal(t, []string{user.RoleLearner}, upd.Roles)

	require.NoError(t, svc.Delete(ctx, usr.ID))
	_, err = svc.GetByID(ctx, usr.ID)
	assert.Equal(t, user.ErrNotFound, err)
}
