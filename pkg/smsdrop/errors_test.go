package smsdrop

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorSentinels(t *testing.T) {
	assert.ErrorIs(t, invalid("sender", "too long"), ErrValidation)
	assert.ErrorIs(t, &AuthError{StatusCode: 400}, ErrAuth)
	assert.ErrorIs(t, &AuthError{StatusCode: 401, Err: ErrAuthExpired}, ErrAuthExpired)
	assert.ErrorIs(t, &NotFoundError{Resource: "campaign", ID: "x"}, ErrNotFound)
	assert.ErrorIs(t, &RemoteError{StatusCode: 500}, ErrRemote)

	cause := errors.New("connection reset")
	terr := &TransportError{Op: "GET /api/v1/users/me", Err: cause}
	assert.ErrorIs(t, terr, ErrTransport)
	assert.ErrorIs(t, terr, cause)

	wrapped := fmt.Errorf("campaign c-1: %w", ErrInsufficientCredits)
	assert.ErrorIs(t, wrapped, ErrInsufficientCredits)
	assert.NotErrorIs(t, wrapped, ErrRemote)
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "smsdrop: invalid sender: too long", invalid("sender", "too long").Error())
	assert.Equal(t, `smsdrop: campaign "c-1" not found`, (&NotFoundError{Resource: "campaign", ID: "c-1"}).Error())
	assert.Equal(t, "smsdrop: authentication failed (status 401): smsdrop: access token rejected",
		(&AuthError{StatusCode: 401, Err: ErrAuthExpired}).Error())
}

func TestNewRemoteError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"string detail", 400, `{"detail":"CAMPAIGN_ALREADY_LAUNCHED"}`, "CAMPAIGN_ALREADY_LAUNCHED"},
		{"validation list", 422, `{"detail":[{"loc":["body","sender"],"msg":"field required"},{"loc":[],"msg":"bad"}]}`, "body.sender: field required; bad"},
		{"no detail", 502, `{"error":"x"}`, "bad gateway"},
		{"plain text", 500, `oops`, "internal server error"},
		{"unknown status", 599, ``, "unexpected response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newRemoteError(tt.status, []byte(tt.body))
			assert.Equal(t, tt.status, err.StatusCode)
			assert.Equal(t, tt.want, err.Message)
		})
	}
}

func TestRawPayload(t *testing.T) {
	assert.Nil(t, rawPayload(nil))
	assert.Equal(t, `{"a":1}`, string(rawPayload([]byte(`{"a":1}`))))
	assert.Equal(t, `"<html>"`, string(rawPayload([]byte("<html>"))))
	assert.Equal(t, `"Bad Gateway & <b>retry</b>\n"`, string(rawPayload([]byte("Bad Gateway & <b>retry</b>\n"))))
	assert.True(t, json.Valid(rawPayload([]byte("<h1>502</h1>"))))
}
