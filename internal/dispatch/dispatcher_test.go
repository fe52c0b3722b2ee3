package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ufpa-tools/sigaa-mcp/internal/actor"
	"github.com/ufpa-tools/sigaa-mcp/internal/artifacts"
	"github.com/ufpa-tools/sigaa-mcp/internal/browser"
)

type fakeResolver struct {
	ops map[string]*Operation
}

func (r *fakeResolver) Resolve(name string, _ map[string]interface{}) (*Operation, error) {
	op, ok := r.ops[name]
	if !ok {
		return nil, &InvalidRequestError{Reason: "unknown tool: " + name}
	}
	return op, nil
}

type fakeSession struct {
	ensureErr   error
	ensureCalls int
}

func (s *fakeSession) EnsureActive(context.Context) error {
	s.ensureCalls++
	return s.ensureErr
}

func (s *fakeSession) MarkDegraded() {}

func newDispatcher(resolver *fakeResolver, session *fakeSession) *Dispatcher {
	return New(resolver, session, Options{
		RequestTimeout: 2 * time.Second,
		MaxRetries:     2,
		RetryBackoff:   5 * time.Millisecond,
	})
}

func TestDispatch_Success(t *testing.T) {
	resolver := &fakeResolver{ops: map[string]*Operation{
		"sigaa_check_status": {Sessionless: true, Run: func(context.Context) (interface{}, error) {
			return map[string]string{"state": "active"}, nil
		}},
	}}
	session := &fakeSession{}
	d := newDispatcher(resolver, session)
	defer d.Close()

	result := d.Dispatch(context.Background(), ToolRequest{Name: "sigaa_check_status"})

	require.Nil(t, result.Failure)
	assert.NotEmpty(t, result.RequestID)
	assert.Equal(t, map[string]string{"state": "active"}, result.Payload)
	// Sessionless operations skip EnsureActive
	assert.Zero(t, session.ensureCalls)
}

func TestDispatch_UnknownTool(t *testing.T) {
	d := newDispatcher(&fakeResolver{ops: map[string]*Operation{}}, &fakeSession{})
	defer d.Close()

	result := d.Dispatch(context.Background(), ToolRequest{Name: "sigaa_inexistente"})

	require.NotNil(t, result.Failure)
	assert.Equal(t, KindInvalidRequest, result.Failure.Kind)
}

func TestDispatch_RequiresSession(t *testing.T) {
	resolver := &fakeResolver{ops: map[string]*Operation{
		"sigaa_get_notifications": {Run: func(context.Context) (interface{}, error) {
			t.Fatal("operation must not run without a session")
			return nil, nil
		}},
	}}
	session := &fakeSession{ensureErr: actor.ErrNotLoggedIn}
	d := newDispatcher(resolver, session)
	defer d.Close()

	result := d.Dispatch(context.Background(), ToolRequest{Name: "sigaa_get_notifications"})

	require.NotNil(t, result.Failure)
	assert.Equal(t, KindAuthenticationFailed, result.Failure.Kind)
	assert.Equal(t, 1, session.ensureCalls)
}

func TestDispatch_RetriesTransientFailures(t *testing.T) {
	calls := 0
	resolver := &fakeResolver{ops: map[string]*Operation{
		"flaky": {Run: func(context.Context) (interface{}, error) {
			calls++
			if calls < 3 {
				return nil, &browser.EngineError{Kind: browser.KindDisconnected, Message: "cdp hiccup"}
			}
			return "ok", nil
		}},
	}}
	d := newDispatcher(resolver, &fakeSession{})
	defer d.Close()

	result := d.Dispatch(context.Background(), ToolRequest{Name: "flaky"})

	require.Nil(t, result.Failure)
	assert.Equal(t, "ok", result.Payload)
	assert.Equal(t, 3, calls)
}

func TestDispatch_RetryBudgetExhausted(t *testing.T) {
	calls := 0
	resolver := &fakeResolver{ops: map[string]*Operation{
		"broken": {Run: func(context.Context) (interface{}, error) {
			calls++
			return nil, &browser.EngineError{Kind: browser.KindDisconnected, Message: "gone"}
		}},
	}}
	d := newDispatcher(resolver, &fakeSession{})
	defer d.Close()

	result := d.Dispatch(context.Background(), ToolRequest{Name: "broken"})

	require.NotNil(t, result.Failure)
	assert.Equal(t, KindDisconnected, result.Failure.Kind)
	// Initial attempt plus MaxRetries
	assert.Equal(t, 3, calls)
}

func TestDispatch_NonRetryableFailsFast(t *testing.T) {
	calls := 0
	resolver := &fakeResolver{ops: map[string]*Operation{
		"missing": {Run: func(context.Context) (interface{}, error) {
			calls++
			return nil, &browser.EngineError{Kind: browser.KindNotFound, Message: "element not found: .menu"}
		}},
	}}
	d := newDispatcher(resolver, &fakeSession{})
	defer d.Close()

	result := d.Dispatch(context.Background(), ToolRequest{Name: "missing"})

	require.NotNil(t, result.Failure)
	assert.Equal(t, KindNotFound, result.Failure.Kind)
	assert.Equal(t, 1, calls)
}

func TestDispatch_SessionExpiredTriggersOneRelogin(t *testing.T) {
	calls := 0
	resolver := &fakeResolver{ops: map[string]*Operation{
		"op": {Run: func(context.Context) (interface{}, error) {
			calls++
			if calls == 1 {
				return nil, actor.ErrSessionExpired
			}
			return "recovered", nil
		}},
	}}
	session := &fakeSession{}
	d := newDispatcher(resolver, session)
	defer d.Close()

	result := d.Dispatch(context.Background(), ToolRequest{Name: "op"})

	require.Nil(t, result.Failure)
	assert.Equal(t, "recovered", result.Payload)
	assert.Equal(t, 2, calls)
	// Once before the operation, once to recover
	assert.Equal(t, 2, session.ensureCalls)
}

func TestDispatch_SecondExpiryIsNotRetried(t *testing.T) {
	calls := 0
	resolver := &fakeResolver{ops: map[string]*Operation{
		"op": {Run: func(context.Context) (interface{}, error) {
			calls++
			return nil, actor.ErrSessionExpired
		}},
	}}
	d := newDispatcher(resolver, &fakeSession{})
	defer d.Close()

	result := d.Dispatch(context.Background(), ToolRequest{Name: "op"})

	require.NotNil(t, result.Failure)
	assert.Equal(t, KindAuthenticationFailed, result.Failure.Kind)
	assert.Equal(t, 2, calls)
}

func TestDispatch_Timeout(t *testing.T) {
	resolver := &fakeResolver{ops: map[string]*Operation{
		"slow": {Sessionless: true, Run: func(ctx context.Context) (interface{}, error) {
			select {
			case <-time.After(5 * time.Second):
				return "too late", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}},
	}}
	d := New(resolver, &fakeSession{}, Options{
		RequestTimeout: 100 * time.Millisecond,
		MaxRetries:     2,
		RetryBackoff:   time.Millisecond,
	})
	defer d.Close()

	result := d.Dispatch(context.Background(), ToolRequest{Name: "slow"})

	require.NotNil(t, result.Failure)
	assert.Equal(t, KindTimeout, result.Failure.Kind)
}

func TestDispatch_UnrecoverableSession(t *testing.T) {
	resolver := &fakeResolver{ops: map[string]*Operation{
		"op": {Run: func(context.Context) (interface{}, error) {
			return "never", nil
		}},
	}}
	session := &fakeSession{ensureErr: actor.ErrUnrecoverable}
	d := newDispatcher(resolver, session)
	defer d.Close()

	result := d.Dispatch(context.Background(), ToolRequest{Name: "op"})

	require.NotNil(t, result.Failure)
	assert.Equal(t, KindSessionUnrecoverable, result.Failure.Kind)
}

func TestDispatch_PreservesRequestID(t *testing.T) {
	resolver := &fakeResolver{ops: map[string]*Operation{
		"op": {Sessionless: true, Run: func(context.Context) (interface{}, error) { return "ok", nil }},
	}}
	d := newDispatcher(resolver, &fakeSession{})
	defer d.Close()

	result := d.Dispatch(context.Background(), ToolRequest{Name: "op", RequestID: "req-123"})
	assert.Equal(t, "req-123", result.RequestID)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"invalid request", &InvalidRequestError{Reason: "bad args"}, KindInvalidRequest},
		{"not logged in", actor.ErrNotLoggedIn, KindAuthenticationFailed},
		{"auth failure", &actor.AuthError{Reason: "Usuário e/ou senha inválidos"}, KindAuthenticationFailed},
		{"unrecoverable", actor.ErrUnrecoverable, KindSessionUnrecoverable},
		{"engine timeout", &browser.EngineError{Kind: browser.KindTimedOut}, KindTimeout},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"not found", &browser.EngineError{Kind: browser.KindNotFound}, KindNotFound},
		{"unusable document", fmt.Errorf("claim: %w", artifacts.ErrInvalidArtifact), KindNotFound},
		{"disconnected", &browser.EngineError{Kind: browser.KindDisconnected}, KindDisconnected},
		{"anything else", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err).Kind)
		})
	}
}
