// Package httpgate implements authz.Gate against an HTTP policy service,
// wrapped in the same circuit breaker the teacher wraps its SFU/Redis
// clients in (pkg/sfu/client.go), so a policy-service outage degrades to
// AuthorizationFailed instead of hanging the dispatcher.
package httpgate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/netology-group/conferences/internal/authz"
	"github.com/netology-group/conferences/internal/errs"
	"github.com/netology-group/conferences/internal/logging"
	"github.com/netology-group/conferences/internal/telemetry"
)

const breakerName = "authz-gate"

// Gate is the HTTP-backed authz.Gate.
type Gate struct {
	baseURL string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker
}

// New builds a Gate pointed at baseURL with the given request timeout.
func New(baseURL string, timeout time.Duration) *Gate {
	st := gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		OnStateChange: func(name string, from, to gobreaker.State) {
			telemetry.ObserveCircuitBreakerState(breakerName, stateName(to))
		},
	}
	return &Gate{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		cb:      gobreaker.NewCircuitBreaker(st),
	}
}

type authorizeRequest struct {
	Audience string           `json:"audience"`
	Subject  subjectPayload   `json:"subject"`
	Object   authz.ObjectPath `json:"object"`
	Action   authz.Action     `json:"action"`
}

type subjectPayload struct {
	AccountId string `json:"account_id"`
	Audience  string `json:"audience"`
}

// Authorize implements authz.Gate.
func (g *Gate) Authorize(ctx context.Context, audience string, subject authz.Subject, path authz.ObjectPath, action authz.Action) error {
	body, err := json.Marshal(authorizeRequest{
		Audience: audience,
		Subject:  subjectPayload{AccountId: subject.AgentId.String(), Audience: subject.Audience},
		Object:   path,
		Action:   action,
	})
	if err != nil {
		return errs.New(errs.Internal, err)
	}

	resp, err := g.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/authorize", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return g.client.Do(req)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			telemetry.CircuitBreakerFailures.WithLabelValues(breakerName).Inc()
		}
		logging.Warn(ctx, "authz gate request failed", zap.Error(err))
		return errs.New(errs.AuthorizationFailed, err)
	}

	httpResp := resp.(*http.Response)
	defer httpResp.Body.Close()

	switch httpResp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusForbidden:
		return errs.New(errs.AccessDenied, nil).
			WithContext("audience", audience).
			WithContext("agent_id", subject.AgentId.String())
	default:
		return errs.New(errs.AuthorizationFailed, fmt.Errorf("authz gate returned status %d", httpResp.StatusCode))
	}
}

func stateName(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "open"
	}
}
