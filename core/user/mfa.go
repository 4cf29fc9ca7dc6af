package user

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

var mfaValidateOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      2,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// MFASetup is handed to the user once so they can register the secret in their authenticator app.
type MFASetup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}

type MFAStatus struct {
	Enabled bool `json:"enabled"`
	Pending bool `json:"pending"`
}

func generateMFAKey(issuer string, usr User) (MFASetup, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: usr.Email,
		Period:      mfaValidateOpts.Period,
		Digits:      mfaValidateOpts.Digits,
		Algorithm:   mfaValidateOpts.Algorithm,
	})
	if err != nil {
		return MFASetup{}, errors.Wrap(err, "generating totp key")
	}
	return MFASetup{Secret: key.Secret(), OTPAuthURL: key.URL()}, nil
}

// validateMFACode accepts codes from up to 2 periods before or after now.
func validateMFACode(secret, code string) bool {
	code = strings.TrimSpace(code)
	if secret == "" || len(code) != mfaValidateOpts.Digits.Length() {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, NowFunc().UTC(), mfaValidateOpts)
	return err == nil && ok
}
