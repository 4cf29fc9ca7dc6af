package user

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/newstandard/academy/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// tokenGenerator makes one-time HMAC tokens bound to the user's state:
// a token stops working as soon as the hashed user fields change (password, last login, ...).
type tokenGenerator struct {
	salt      []byte
	secretKey string
	timeout   time.Duration
	hashValue func(usr User, ts int) []byte
}

func newPasswordResetTokenGenerator(conf *core.Config) tokenGenerator {
	return tokenGenerator{
		salt:      []byte("academy.core.user.token_gen.password_reset"),
		secretKey: conf.SecretKey,
		timeout:   conf.PasswordResetTimeoutDelta,
		hashValue: func(usr User, ts int) []byte {
			var val bytes.Buffer
			val.WriteString(usr.ID)
			val.Write(usr.PasswordHash)
			if !usr.LastLogin.IsZero() {
				val.WriteString(usr.LastLogin.UTC().String())
			}
			val.WriteString(strconv.Itoa(ts))
			return val.Bytes()
		},
	}
}

func newEmailConfirmTokenGenerator(conf *core.Config) tokenGenerator {
	return tokenGenerator{
		salt:      []byte("academy.core.user.token_gen.email_confirm"),
		secretKey: conf.SecretKey,
		timeout:   conf.EmailConfirmTimeoutDelta,
		hashValue: func(usr User, ts int) []byte {
			var val bytes.Buffer
			val.WriteString(usr.ID)
			val.WriteString(usr.Email)
			val.WriteString(strconv.FormatBool(usr.EmailConfirmed))
			val.WriteString(strconv.Itoa(ts))
			return val.Bytes()
		},
	}
}

// EncodeUID base64 encodes given User ID
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

// decodeUID base64 decodes given UID
func decodeUID(uid string) (string, error) {
	idBytes, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(idBytes), nil
}

// MakePasswordResetToken generates a password reset token for a given User.
func MakePasswordResetToken(conf *core.Config, usr User) (string, error) {
	return newPasswordResetTokenGenerator(conf).makeToken(usr)
}

// MakeEmailConfirmToken generates an email confirmation token for a given User.
func MakeEmailConfirmToken(conf *core.Config, usr User) (string, error) {
	return newEmailConfirmTokenGenerator(conf).makeToken(usr)
}

func (g tokenGenerator) makeToken(usr User) (string, error) {
	return g.makeTokenWithTimestamp(usr, numDaysSince2001(NowFunc()))
}

// verifyToken checks that a token for a given User is valid.
func (g tokenGenerator) verifyToken(usr User, token string) error {
	if token == "" {
		return errInvalidToken
	}

	parts := strings.SplitN(token, "-", 2)
	if len(parts) < 2 {
		return errInvalidToken
	}
	tsB32 := parts[0]

	data, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(tsB32)
	if err != nil {
		return errInvalidToken
	}
	ts, err := strconv.Atoi(string(data))
	if err != nil {
		return errInvalidToken
	}

	// check that token has not been tampered with
	newToken, err := g.makeTokenWithTimestamp(usr, ts)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(newToken), []byte(token)) == 0 {
		return errInvalidToken
	}

	// check that the timestamp is within limit
	if (numDaysSince2001(NowFunc()) - ts) > int(g.timeout/(24*time.Hour)) {
		return errTokenExpired
	}
	return nil
}

func (g tokenGenerator) makeTokenWithTimestamp(usr User, ts int) (string, error) {
	tsB32 := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString([]byte(strconv.Itoa(ts)))
	sig, err := g.sign(g.hashValue(usr, ts))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", tsB32, sig), nil
}

func (g tokenGenerator) sign(val []byte) (string, error) {
	key := sha256.Sum256(append(append([]byte{}, g.salt...), g.secretKey...))
	h := hmac.New(sha256.New, key[:])
	if _, err := h.Write(val); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil)), nil
}

func numDaysSince2001(t time.Time) int {
	ref := time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)
	return int(math.Ceil(t.Sub(ref).Hours() / 24))
}
