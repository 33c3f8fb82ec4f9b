package httpgate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"

	"github.com/netology-group/conferences/internal/authz"
	"github.com/netology-group/conferences/internal/errs"
	"github.com/netology-group/conferences/internal/store"
)

func TestAuthorize_Allowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g := New(srv.URL, time.Second)
	subject := authz.Subject{AgentId: store.AgentId(store.NewRoomId()), Audience: "example.audience"}

	err := g.Authorize(context.Background(), "example.audience", subject, authz.SystemPath(), authz.ActionUpdate)
	assert.NoError(t, err)
}

func TestAuthorize_Denied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	g := New(srv.URL, time.Second)
	subject := authz.Subject{AgentId: store.AgentId(store.NewRoomId()), Audience: "example.audience"}

	err := g.Authorize(context.Background(), "example.audience", subject, authz.SystemPath(), authz.ActionUpdate)
	appErr, ok := errs.As(err)
	if !ok || appErr.Kind != errs.AccessDenied {
		t.Fatalf("expected AccessDenied, got %v", err)
	}
}

func TestAuthorize_GateUnreachable_NeverAllows(t *testing.T) {
	g := New("http://127.0.0.1:1", 50*time.Millisecond)
	subject := authz.Subject{AgentId: store.AgentId(store.NewRoomId()), Audience: "example.audience"}

	err := g.Authorize(context.Background(), "example.audience", subject, authz.SystemPath(), authz.ActionUpdate)
	appErr, ok := errs.As(err)
	if !ok || appErr.Kind != errs.AuthorizationFailed {
		t.Fatalf("expected AuthorizationFailed, got %v", err)
	}
}

func TestAuthorize_OpenBreaker_FailsFastAsAuthorizationFailed(t *testing.T) {
	g := &Gate{
		baseURL: "http://127.0.0.1:1",
		client:  &http.Client{Timeout: 50 * time.Millisecond},
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        breakerName,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 1 },
		}),
	}
	subject := authz.Subject{AgentId: store.AgentId(store.NewRoomId()), Audience: "example.audience"}

	// First call trips the breaker (the dial itself fails).
	err := g.Authorize(context.Background(), "example.audience", subject, authz.SystemPath(), authz.ActionUpdate)
	assert.Error(t, err)

	// Second call should fail fast via gobreaker.ErrOpenState, still surfaced
	// as AuthorizationFailed, never as an implicit allow.
	err = g.Authorize(context.Background(), "example.audience", subject, authz.SystemPath(), authz.ActionUpdate)
	appErr, ok := errs.As(err)
	if !ok || appErr.Kind != errs.AuthorizationFailed {
		t.Fatalf("expected AuthorizationFailed on open breaker, got %v", err)
	}
}
