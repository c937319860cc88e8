package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stanstork/chatpush/internal/handlers"
	"github.com/stanstork/chatpush/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type okDispatcher struct{ calls int }

func (d *okDispatcher) Handle(_ context.Context, _ models.MessageEvent) (models.DispatchResult, error) {
	d.calls++
	return models.DispatchResult{Success: true}, nil
}

const insertEvent = `{"type":"INSERT","table":"messages","record":{"id":1,"user_id":"u1","room_id":"r1","content":"hi"}}`

func TestRouter(t *testing.T) {
	dispatcher := &okDispatcher{}
	router := NewRouter(handlers.NewWebhookHandler(dispatcher, zerolog.Nop()), "", zerolog.Nop())

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", http.StatusOK},
		{"webhook", http.MethodPost, "/webhooks/messages", insertEvent, http.StatusOK},
		{"unknown path", http.MethodGet, "/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
	assert.Equal(t, 1, dispatcher.calls)
}

func TestRouterWebhookSecret(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hook-secret"), bcrypt.MinCost)
	require.NoError(t, err)

	dispatcher := &okDispatcher{}
	router := NewRouter(handlers.NewWebhookHandler(dispatcher, zerolog.Nop()), string(hash), zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/webhooks/messages", strings.NewReader(insertEvent))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, dispatcher.calls)

	req = httptest.NewRequest(http.MethodPost, "/webhooks/messages", strings.NewReader(insertEvent))
	req.Header.Set("Authorization", "Bearer hook-secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, dispatcher.calls)

	// health stays open
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
