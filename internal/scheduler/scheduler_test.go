package scheduler

import (
	"context"
	"sync"
	"testing"

	"github.com/netology-group/conferences/internal/logging"
)

type invocation struct {
	audience string
	method   string
	payload  any
}

type fakeInvoker struct {
	mu    sync.Mutex
	calls []invocation
	err   error
}

func (f *fakeInvoker) InvokeSystem(ctx context.Context, audience, method string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, invocation{audience: audience, method: method, payload: payload})
	return f.err
}

func (f *fakeInvoker) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestNew_RejectsInvalidCron(t *testing.T) {
	_, err := New("not a cron expression", "usr.example.org", &fakeInvoker{})
	if err == nil {
		t.Fatal("expected an error constructing a scheduler with an invalid cron expression")
	}
}

func TestRunVacuum_InvokesSystemVacuum(t *testing.T) {
	_ = logging.Initialize(true)
	inv := &fakeInvoker{}
	s, err := New("0 3 * * *", "usr.example.org", inv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.runVacuum()

	if inv.len() != 1 {
		t.Fatalf("expected one InvokeSystem call, got %d", inv.len())
	}
	call := inv.calls[0]
	if call.method != "system.vacuum" {
		t.Errorf("method = %q, want system.vacuum", call.method)
	}
	if call.audience != "usr.example.org" {
		t.Errorf("audience = %q, want usr.example.org", call.audience)
	}
}

func TestRunVacuum_LogsAndSwallowsInvokeError(t *testing.T) {
	_ = logging.Initialize(true)
	inv := &fakeInvoker{err: context.DeadlineExceeded}
	s, err := New("0 3 * * *", "usr.example.org", inv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.runVacuum()

	if inv.len() != 1 {
		t.Fatalf("expected the call to still be attempted, got %d", inv.len())
	}
}

func TestStartStop_Lifecycle(t *testing.T) {
	inv := &fakeInvoker{}
	s, err := New("0 3 * * *", "usr.example.org", inv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.Start()
	if err := s.Stop(); err != nil {
		t.Fatalf("unexpected error stopping scheduler: %v", err)
	}
}
