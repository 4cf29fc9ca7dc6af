package user

import (
	"testing"
	"time"

	"github.com/newstandard/academy/core"
)

func TestMakeVerifyToken(t *testing.T) {
	conf := &core.Config{
		SecretKey:                 "secret",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		EmailConfirmTimeoutDelta:  24 * time.Hour,
	}

	now := time.Now()
	usr := User{
		ID:        "b7e3b2b6-0a36-4f0e-9a0c-0d7f2bb6f1aa",
		Name:      "T",
		Email:     "t@test.test",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: now,
	}
	_ = usr.SetPassword("pwd")

	resetGen := newPasswordResetTokenGenerator(conf)
	confirmGen := newEmailConfirmTokenGenerator(conf)

	validToken, err := resetGen.makeToken(usr)
	if err != nil {
		t.Fatalf("makeToken(): %v", err)
	}
	confirmToken, err := confirmGen.makeToken(usr)
	if err != nil {
		t.Fatalf("makeToken(): %v", err)
	}

	// generate an expired token
	dayLate := conf.PasswordResetTimeoutDelta + (24 * time.Hour)
	NowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken, err := resetGen.makeToken(usr)
	NowFunc = time.Now // reset
	if err != nil {
		t.Fatalf("makeToken(): %v", err)
	}

	loggedInAgain := usr
	loggedInAgain.LastLogin = now.Add(time.Minute)

	confirmed := usr
	confirmed.EmailConfirmed = true

	tests := []struct {
		name    string
		gen     tokenGenerator
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", gen: resetGen, usr: usr, wantErr: errInvalidToken},
		{name: "invalid parts len", gen: resetGen, usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", gen: resetGen, usr: usr, token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", gen: resetGen, usr: usr, token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid token", gen: resetGen, usr: usr, token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "expired token", gen: resetGen, usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "used after new login", gen: resetGen, usr: loggedInAgain, token: validToken, wantErr: errInvalidToken},
		{name: "reset token as confirm token", gen: confirmGen, usr: usr, token: validToken, wantErr: errInvalidToken},
		{name: "confirm token reused", gen: confirmGen, usr: confirmed, token: confirmToken, wantErr: errInvalidToken},
		{name: "valid token", gen: resetGen, usr: usr, token: validToken},
		{name: "valid confirm token", gen: confirmGen, usr: usr, token: confirmToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.gen.verifyToken(tt.usr, tt.token); err != tt.wantErr {
				t.Errorf("verifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	usr := User{ID: "0c4c8d1e-9f1b-4a57-8f0e-3b5b3a0f6c11"}
	id, err := decodeUID(EncodeUID(usr))
	if err != nil {
		t.Fatalf("decodeUID(): %v", err)
	}
	if id != usr.ID {
		t.Errorf("decodeUID() = %s; want %s", id, usr.ID)
	}
}
