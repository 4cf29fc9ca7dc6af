package tests

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/newstandard/academy/apps/api/echo"
	"github.com/newstandard/academy/core/user"
	"github.com/newstandard/academy/tests"
)

var loginIP int

// login posts credentials from a new client IP so the rate limiter stays out of the way.
func login(app Server, path string, body []byte) *httptest.ResponseRecorder {
	loginIP++
	req, rec := newAuthRequest(http.MethodPost, path, "", body)
	req.Header.Set("X-Real-IP", "10.0.0."+strconv.Itoa(loginIP))
	app.ServeHTTP(rec, req)
	return rec
}

func Test_userApi_auth(t *testing.T) {
	app := setup(t)

	learner := testutil.CreateUser(t, usrRepo, "Learner", "learner@test.cd", "")
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", "", testutil.UserOpts{Roles: []string{user.RoleAdmin}})

	runHttpTests(t, app, []httpTest{
		{name: "home", path: "/", wantData: nil},
		{name: "auth required", path: "/v1/users/me", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "bad token", path: "/v1/users/me", token: "not.a.jwt", wantCode: http.StatusUnauthorized},
		{name: "admin required", path: "/v1/users", token: getToken(t, learner), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "admin", path: "/v1/users", token: getToken(t, admin)},
		{name: "own profile", path: "/v1/users/" + learner.ID, token: getToken(t, learner)},
		{name: "someone else's profile", path: "/v1/users/" + admin.ID, token: getToken(t, learner), wantCode: http.StatusNotFound},
		{name: "admin sees profiles", path: "/v1/users/" + learner.ID, token: getToken(t, admin)},
	})

	rec := do(app, http.MethodGet, "/v1/users/me", getToken(t, learner))
	require.Equal(t, http.StatusOK, rec.Code)
	var me user.User
	unmarshal(t, rec, &me)
	assert.Equal(t, learner.ID, me.ID)
	assert.Equal(t, []string{user.RoleLearner}, me.Roles)
}

func Test_userApi_login(t *testing.T) {
	app := setup(t)
	pwd := "Secr3t!Pass"

	testutil.CreateUser(t, usrRepo, "Jane", "jane@test.cd", pwd)
	testutil.CreateUser(t, usrRepo, "Pending", "pending@test.cd", pwd, testutil.UserOpts{Pending: true})
	testutil.CreateUser(t, usrRepo, "Gone", "gone@test.cd", pwd, testutil.UserOpts{Inactive: true})

	tests := []struct {
		name     string
		email    string
		pwd      string
		wantCode int
		wantErr  string
	}{
		{name: "unknown user", email: "nobody@test.cd", pwd: pwd, wantCode: http.StatusBadRequest, wantErr: "authentication failed"},
		{name: "wrong password", email: "jane@test.cd", pwd: "nope", wantCode: http.StatusBadRequest, wantErr: "authentication failed"},
		{name: "unconfirmed email", email: "pending@test.cd", pwd: pwd, wantCode: http.StatusForbidden, wantErr: "email address not confirmed"},
		{name: "deactivated", email: "gone@test.cd", pwd: pwd, wantCode: http.StatusForbidden, wantErr: "account deactivated"},
		{name: "ok (case insensitive)", email: " JANE@test.cd", pwd: pwd, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := login(app, "/v1/users/login", marchallObj(t, LoginRequest{Email: tt.email, Password: tt.pwd}))
			checkCodeAndData(t, httpTest{wantCode: tt.wantCode}, rec)
			if tt.wantErr != "" {
				checkCodeAndData(t, httpTest{wantCode: tt.wantCode, wantData: marchallObj(t, httpErr{Error: tt.wantErr})}, rec)
				return
			}
			var resp LoginResponse
			unmarshal(t, rec, &resp)
			require.NotEmpty(t, resp.Token)
			require.NotNil(t, resp.User)
			assert.False(t, resp.User.LastLogin.IsZero())
			assert.Equal(t, http.StatusOK, do(app, http.MethodGet, "/v1/users/me", resp.Token).Code)
		})
	}
}

func Test_userApi_loginMFA(t *testing.T) {
	app := setup(t)
	ctx := context.Background()
	pwd := "Secr3t!Pass"
	usr := testutil.CreateUser(t, usrRepo, "Jane", "jane@test.cd", pwd)

	key, err := usrSvc.SetupMFA(ctx, usr)
	require.NoError(t, err)
	code, err := totp.GenerateCode(key.Secret, time.Now().UTC())
	require.NoError(t, err)
	usr, err = usrSvc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	require.NoError(t, usrSvc.EnableMFA(ctx, usr, code))

	rec := login(app, "/v1/users/login", marchallObj(t, LoginRequest{Email: "jane@test.cd", Password: pwd}))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp LoginResponse
	unmarshal(t, rec, &resp)
	assert.True(t, resp.MFARequired)
	assert.Empty(t, resp.Token)
	require.NotEmpty(t, resp.MFAToken)

	// the pending token does not grant access
	assert.Equal(t, http.StatusUnauthorized, do(app, http.MethodGet, "/v1/users/me", resp.MFAToken).Code)

	runHttpTests(t, app, []httpTest{
		{
			name: "bad mfa token", method: http.MethodPost, path: "/v1/users/login/mfa",
			body:     marchallObj(t, MFAVerifyRequest{MFAToken: getToken(t, usr), Code: code}),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "invalid or expired mfa token"}),
		},
		{
			name: "bad code", method: http.MethodPost, path: "/v1/users/login/mfa",
			body:     marchallObj(t, MFAVerifyRequest{MFAToken: resp.MFAToken, Code: "000000"}),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "invalid authentication code"}),
		},
	})

	rec = login(app, "/v1/users/login/mfa", marchallObj(t, MFAVerifyRequest{MFAToken: resp.MFAToken, Code: code}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var final LoginResponse
	unmarshal(t, rec, &final)
	require.NotEmpty(t, final.Token)
	assert.Equal(t, http.StatusOK, do(app, http.MethodGet, "/v1/users/me", final.Token).Code)
}

func Test_userApi_register(t *testing.T) {
	app := setup(t)

	body := func(email, pwd string) []byte {
		return marchallObj(t, user.NewUser{
			Name:            "New Hire",
			Email:           email,
			Password:        pwd,
			PasswordConfirm: pwd,
			Roles:           []string{user.RoleAdmin},
		})
	}

	rec := do(app, http.MethodPost, "/v1/users/register", "", body("new@test.cd", "short"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var fields map[string]string
	unmarshal(t, rec, &fields)
	assert.Contains(t, fields, "password")

	rec = do(app, http.MethodPost, "/v1/users/register", "", body("new@test.cd", "Secr3t!Pass"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var usr user.User
	unmarshal(t, rec, &usr)
	assert.Equal(t, []string{user.RoleLearner}, usr.Roles)
	assert.False(t, usr.EmailConfirmed)

	rec = do(app, http.MethodPost, "/v1/users/register", "", body("NEW@test.cd", "Secr3t!Pass"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	unmarshal(t, rec, &fields)
	assert.Equal(t, user.ErrEmailExists.Error(), fields["email"])

	// not confirmed yet
	rec = login(app, "/v1/users/login", marchallObj(t, LoginRequest{Email: "new@test.cd", Password: "Secr3t!Pass"}))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func Test_userApi_rateLimit(t *testing.T) {
	app := setup(t)
	body := marchallObj(t, EmailRequest{Email: "someone@test.cd"})

	for i := 0; i < conf.RateLimit.Requests; i++ {
		rec := do(app, http.MethodPost, "/v1/users/password-reset", "", body)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}
	runHttpTests(t, app, []httpTest{
		{
			name: "limited", method: http.MethodPost, path: "/v1/users/password-reset", body: body,
			wantCode: http.StatusTooManyRequests, wantData: marchallObj(t, httpErr{Error: "too many requests"}),
		},
		{name: "other routes unaffected", method: http.MethodPost, path: "/v1/users/confirm-email/resend", body: body},
	})
}
