package user

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/newstandard/academy/core"
)

func newValidator() (*validator.Validate, ut.Translator) {
	enLocale := en.New()
	translator, _ := ut.New(enLocale, enLocale).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate, translator
}

func TestPasswordPolicy(t *testing.T) {
	validate, translator := newValidator()

	commonPwdMu.Lock()
	commonPasswords = sortedCopy([]string{"p@ssw0rd!", "123456"})
	commonPwdMu.Unlock()
	defer func() {
		commonPwdMu.Lock()
		commonPasswords = nil
		commonPwdMu.Unlock()
	}()

	tests := []struct {
		name    string
		pwd     string
		wantMsg string
	}{
		{name: "too short", pwd: "Ab1!", wantMsg: pwdMinLenText},
		{name: "whitespace", pwd: "Abc 123!xyz", wantMsg: pwdNoSpaceText},
		{name: "all numeric", pwd: "1234567890", wantMsg: pwdNotAllNumText},
		{name: "no special", pwd: "Abcdefg123", wantMsg: pwdComplexityText},
		{name: "no upper", pwd: "abcdef12!", wantMsg: pwdComplexityText},
		{name: "similar to email", pwd: "Jane.Doe@1", wantMsg: pwdAttrSimText},
		{name: "common", pwd: "P@ssw0rd!", wantMsg: pwdNoCommonText},
		{name: "valid", pwd: "Secr3t!Pass"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := NewUser{
				Name:            "Jane",
				Email:           "jane.doe@1.cd",
				Password:        tt.pwd,
				PasswordConfirm: tt.pwd,
			}
			err := validate.Struct(nu)
			if tt.wantMsg == "" {
				if err != nil {
					t.Fatalf("Struct() error = %v; want nil", err)
				}
				return
			}
			verrs, ok := err.(validator.ValidationErrors)
			if !ok || len(verrs) != 1 {
				t.Fatalf("Struct() error = %v; want one password error", err)
			}
			if msg := verrs[0].Translate(translator); msg != tt.wantMsg {
				t.Errorf("Struct() message = %q; want %q", msg, tt.wantMsg)
			}
		})
	}
}

func TestPasswordPolicy_resetAndChange(t *testing.T) {
	validate, _ := newValidator()

	if err := validate.Struct(ResetUserPassword{Token: "t", UID: "u", Password: "short", PasswordConfirm: "short"}); err == nil {
		t.Error("ResetUserPassword: weak password accepted")
	}
	if err := validate.Struct(ChangePassword{CurrentPassword: "x", Password: "Secr3t!Pass", PasswordConfirm: "Secr3t!Pass"}); err != nil {
		t.Errorf("ChangePassword: %v", err)
	}
	if err := validate.Struct(ChangePassword{CurrentPassword: "x", Password: "Secr3t!Pass", PasswordConfirm: "other"}); err == nil {
		t.Error("ChangePassword: mismatching confirmation accepted")
	}
}

func TestAllRolesValidation(t *testing.T) {
	validate, _ := newValidator()

	tests := []struct {
		roles   []string
		wantErr bool
	}{
		{roles: nil},
		{roles: []string{RoleLearner}},
		{roles: []string{RoleAdmin, RoleLeader}},
		{roles: []string{"trainer:"}, wantErr: true},
		{roles: []string{RoleEditor, "lol"}, wantErr: true},
	}
	for _, tt := range tests {
		uu := UpdateUser{Roles: tt.roles}
		if err := validate.Struct(uu); (err != nil) != tt.wantErr {
			t.Errorf("roles %v: error = %v, wantErr %v", tt.roles, err, tt.wantErr)
		}
	}
}
