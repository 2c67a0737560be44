package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyago/tripsync/internal/logging"
)

func newClient(t *testing.T, h http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewHTTPClient(srv.URL, func(ctx context.Context) (string, error) { return "token", nil }, logging.Nop{})
	require.NoError(t, err)
	return c
}

func TestUpdate_SendsPreconditionHeader(t *testing.T) {
	var gotHeader string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get(HeaderBaseUpdatedAt)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 1, "title": "x"})
	})

	base := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	_, err := c.UpdatePlan(context.Background(), 1, Patch{"title": "x"}, &base)
	require.NoError(t, err)
	assert.Equal(t, "2026-07-01T12:00:00Z", gotHeader)
}

func TestUpdate_NilBaseSkipsPrecondition(t *testing.T) {
	var present bool
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, present = r.Header[HeaderBaseUpdatedAt]
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 1})
	})

	_, err := c.UpdatePlan(context.Background(), 1, Patch{"title": "x"}, nil)
	require.NoError(t, err)
	assert.False(t, present, "forced overwrite must not send a precondition")
}

func TestConflictResponse_DecodedAsConflictError(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"conflict","server":{"id":1,"title":"theirs","updated_at":"2026-07-02T00:00:00Z"}}`))
	})

	_, err := c.UpdatePlan(context.Background(), 1, Patch{"title": "mine"}, nil)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrConflict)

	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, string(ce.Server), `"theirs"`)
}

func TestConflictWithoutSnapshot_IsGenericFailure(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`conflict`))
	})

	_, err := c.UpdatePlan(context.Background(), 1, Patch{}, nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConflict)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusInternalServerError, ErrUnavailable},
		{http.StatusBadGateway, ErrUnavailable},
	}
	for _, tc := range tests {
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.code)
		})
		err := c.DeletePlan(context.Background(), 1)
		assert.ErrorIs(t, err, tc.want, "http %d", tc.code)
	}
}

func TestTransportError_IsUnavailable(t *testing.T) {
	c, err := NewHTTPClient("http://127.0.0.1:1", nil, logging.Nop{})
	require.NoError(t, err)
	c.http.Timeout = 200 * time.Millisecond

	err = c.Ping(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestExpiredToken_RejectedLocally(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	t.Cleanup(srv.Close)

	// header/payload crafted with exp in the past; signature is irrelevant
	// because the client only does an unverified parse.
	expired := "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9." + // {"alg":"HS256","typ":"JWT"}
		"eyJleHAiOjF9." + // {"exp":1}
		"x"
	c, err := NewHTTPClient(srv.URL, func(ctx context.Context) (string, error) { return expired, nil }, logging.Nop{})
	require.NoError(t, err)

	err = c.Ping(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, called, "expired token must fail before the wire")
}

func TestListSchedules_QueryString(t *testing.T) {
	var gotQuery string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := c.ListSchedules(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "plan_id=42", gotQuery)
}
