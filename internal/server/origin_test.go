package server

import (
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOriginPolicy_Allowed(t *testing.T) {
	log, hook := test.NewNullLogger()
	policy := NewOriginPolicy([]string{" http://LOCALHOST:1234 ", "", "not a url", "https://chat.example"}, log)

	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, "Ignoring invalid origin in configuration", hook.LastEntry().Message)

	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{"no origin header", "", true},
		{"exact match", "http://localhost:1234", true},
		{"case insensitive", "HTTPS://Chat.Example", true},
		{"wrong port", "http://localhost:8080", false},
		{"wrong scheme", "http://chat.example", false},
		{"unknown host", "http://evil.example", false},
		{"malformed", "::::", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/connect", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, policy.Allowed(r))
		})
	}
}

func TestOriginPolicy_Wildcard(t *testing.T) {
	log, _ := test.NewNullLogger()
	policy := NewOriginPolicy([]string{"*"}, log)

	r := httptest.NewRequest("GET", "/connect", nil)
	r.Header.Set("Origin", "http://anything.example")
	assert.True(t, policy.Allowed(r))
}

func TestOriginPolicy_CheckOriginLogsRejection(t *testing.T) {
	log, hook := test.NewNullLogger()
	policy := NewOriginPolicy(nil, log)

	r := httptest.NewRequest("GET", "/connect", nil)
	r.Header.Set("Origin", "http://evil.example")

	assert.False(t, policy.CheckOrigin(r))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "Blocked connection from disallowed origin", hook.LastEntry().Message)
	assert.Equal(t, "http://evil.example", hook.LastEntry().Data["origin"])
}
