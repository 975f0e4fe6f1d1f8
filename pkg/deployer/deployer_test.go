package deployer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/goliatone/go-formkit/pkg/builder"
)

type sleeps struct{ calls []time.Duration }

func (s *sleeps) sleep(d time.Duration) { s.calls = append(s.calls, d) }

// script replays responses, one per attempt.
func script(steps ...any) (SendFunc, *int) {
	calls := 0
	return func(context.Context, int) (*Response, error) {
		step := steps[calls]
		calls++
		switch v := step.(type) {
		case int:
			return &Response{StatusCode: v, Body: []byte(`{"ok":true}`)}, nil
		case error:
			return nil, v
		}
		panic("bad step")
	}, &calls
}

func states(res *Result) []State {
	out := make([]State, len(res.Transitions))
	for i, t := range res.Transitions {
		out[i] = t.State
	}
	return out
}

func TestRunner_RetriesTransientThenSucceeds(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := &sleeps{}
	send, calls := script(503, 503, 201)

	res, err := Runner{Platform: "test", Policy: DefaultRetryPolicy(), Sleep: s.sleep, Logger: zap.New(core)}.
		Run(context.Background(), "customer", "run-1", send)
	require.NoError(t, err)

	assert.Equal(t, 3, *calls)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, s.calls)
	assert.Equal(t, StateSuccess, res.State)
	assert.Equal(t, 201, res.StatusCode)
	assert.Equal(t, []State{
		StatePending,
		StateSending, StateRetrying,
		StateSending, StateRetrying,
		StateSending, StateSuccess,
	}, states(res))
	assert.Equal(t, 2, logs.FilterMessage("transient deployment failure, retrying").Len())
	for i, entry := range logs.FilterMessage("sending form").All() {
		assert.Equal(t, int64(i+1), entry.ContextMap()["attempt"])
	}
}

func TestRunner_TerminalStatuses(t *testing.T) {
	cases := []struct {
		status int
		kind   error
	}{
		{401, ErrAuthentication},
		{404, ErrEndpointNotFound},
		{400, ErrRequestFailed},
		{409, ErrRequestFailed},
	}
	for _, tc := range cases {
		s := &sleeps{}
		send, calls := script(tc.status)
		res, err := Runner{Sleep: s.sleep}.Run(context.Background(), "f", "r", send)

		require.Error(t, err)
		assert.ErrorIs(t, err, tc.kind)
		assert.Equal(t, 1, *calls, "status %d", tc.status)
		assert.Empty(t, s.calls)
		assert.Equal(t, StateFailed, res.State)

		var depErr *DeploymentError
		require.True(t, errors.As(err, &depErr))
		assert.Equal(t, tc.status, depErr.StatusCode)
		assert.Equal(t, "f", depErr.FormID)
		var status *StatusError
		assert.True(t, errors.As(err, &status))
	}
}

func TestRunner_ExhaustsOnTransportErrors(t *testing.T) {
	s := &sleeps{}
	last := errors.New("connection reset")
	send, calls := script(errors.New("dial tcp: refused"), 502, last)

	res, err := Runner{Policy: RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}, Sleep: s.sleep}.
		Run(context.Background(), "invoice", "r", send)

	assert.ErrorIs(t, err, ErrTransientExhausted)
	assert.ErrorIs(t, err, last)
	assert.Equal(t, 3, *calls)
	assert.Len(t, s.calls, 2)
	assert.Equal(t, StateFailed, res.State)
	assert.Contains(t, err.Error(), "invoice")
}

func TestRunner_ZeroPolicyUsesDefaults(t *testing.T) {
	s := &sleeps{}
	send, calls := script(503, 503, 503, 201)
	_, err := Runner{Sleep: s.sleep}.Run(context.Background(), "f", "r", send)
	assert.ErrorIs(t, err, ErrTransientExhausted)
	assert.Equal(t, DefaultMaxAttempts, *calls)
	assert.Equal(t, []time.Duration{DefaultRetryDelay, DefaultRetryDelay}, s.calls)

	s = &sleeps{}
	send, _ = script(503, 201)
	_, err = Runner{Policy: RetryPolicy{Delay: NoRetryDelay}, Sleep: s.sleep}.Run(context.Background(), "f", "r", send)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{0}, s.calls)
}

func TestRunner_StopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	send := func(context.Context, int) (*Response, error) {
		cancel()
		return nil, context.Canceled
	}
	_, err := Runner{Sleep: func(time.Duration) { t.Fatal("slept after cancellation") }}.Run(ctx, "f", "r", send)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrRequestFailed)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	again, err := NewMetrics(reg)
	require.NoError(t, err)

	send, _ := script(503, 200)
	_, err = Runner{Platform: "joget", Metrics: m, Sleep: func(time.Duration) {}}.Run(context.Background(), "f", "r", send)
	require.NoError(t, err)
	send, _ = script(401)
	_, _ = Runner{Platform: "joget", Metrics: again, Sleep: func(time.Duration) {}}.Run(context.Background(), "f", "r", send)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.attempts.WithLabelValues("joget", "transient")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attempts.WithLabelValues("joget", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attempts.WithLabelValues("joget", "unauthorized")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deployments.WithLabelValues("joget", "FAILED")))

	var nilMetrics *Metrics
	nilMetrics.observeAttempt("x", outcomeSuccess)
}

type fakeDeployer struct {
	fail     map[string]bool
	attempts []string
}

func (f *fakeDeployer) Platform() string { return "fake" }

func (f *fakeDeployer) DeployForm(_ context.Context, a *builder.Artifact, _ Params) (*Result, error) {
	f.attempts = append(f.attempts, a.FormID)
	if f.fail[a.FormID] {
		return &Result{FormID: a.FormID, State: StateFailed},
			&DeploymentError{FormID: a.FormID, Kind: ErrRequestFailed, Attempts: 1, Err: errors.New("boom")}
	}
	return &Result{FormID: a.FormID, State: StateSuccess}, nil
}

func (f *fakeDeployer) PopulateData(context.Context, string, []map[string]any, Params) error {
	return ErrNotImplemented
}

func artifacts(ids ...string) []*builder.Artifact {
	out := make([]*builder.Artifact, len(ids))
	for i, id := range ids {
		out[i] = &builder.Artifact{FormID: id, Tree: map[string]any{}}
	}
	return out
}

func TestDeployMany_StopOnError(t *testing.T) {
	d := &fakeDeployer{fail: map[string]bool{"second": true}}
	res, err := DeployMany(context.Background(), d, artifacts("first", "second", "third"), Params{}, ManyOptions{StopOnError: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, d.attempts)
	assert.Equal(t, []string{"first"}, res.Successful)
	assert.Equal(t, []string{"second"}, res.Failed)
	assert.Equal(t, []string{"third"}, res.Skipped)
	assert.Len(t, res.Errors, 1)
	assert.False(t, res.OK())
}

func TestDeployMany_ContinuesByDefault(t *testing.T) {
	d := &fakeDeployer{fail: map[string]bool{"second": true}}
	res, err := DeployMany(context.Background(), d, artifacts("first", "second", "third"), Params{}, ManyOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second", "third"}, d.attempts)
	assert.Equal(t, []string{"first", "third"}, res.Successful)
	assert.ErrorIs(t, res.Err(), ErrRequestFailed)
	assert.Len(t, res.Results, 3)
}

func TestDeployMany_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := &fakeDeployer{}
	res, err := DeployMany(ctx, d, artifacts("a", "b"), Params{}, ManyOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, d.attempts)
	assert.Equal(t, []string{"a", "b"}, res.Skipped)
}

func TestPrepare(t *testing.T) {
	a := &builder.Artifact{FormID: "customer", Tree: map[string]any{
		"properties": map[string]any{"id": "customer", "name": "Customer", "tableName": "crm_customer"},
	}}

	id, name, table, err := Prepare(a, Params{AppID: "crm", APIID: "API-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"customer", "Customer", "crm_customer"}, []string{id, name, table})

	_, _, table, err = Prepare(a, Params{AppID: "crm", APIID: "API-1", TableName: "override"})
	require.NoError(t, err)
	assert.Equal(t, "override", table)

	var cfgErr *ConfigError
	_, _, _, err = Prepare(a, Params{APIID: "API-1"})
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "app id", cfgErr.Field)

	_, _, _, err = Prepare(a, Params{AppID: "crm"})
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "api id", cfgErr.Field)

	_, _, _, err = Prepare(&builder.Artifact{Tree: map[string]any{}}, Params{AppID: "crm", APIID: "x"})
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "form id", cfgErr.Field)

	id, _, _, err = Prepare(&builder.Artifact{Tree: map[string]any{"properties": map[string]any{"id": "from_tree"}}}, Params{AppID: "crm", APIID: "x"})
	require.NoError(t, err)
	assert.Equal(t, "from_tree", id)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	factory := func(Settings) (Deployer, error) { return &fakeDeployer{}, nil }
	require.NoError(t, reg.Register("Fake", factory))
	assert.Error(t, reg.Register("fake", factory))
	assert.True(t, reg.Has("FAKE"))

	d, err := reg.New("fake", Settings{})
	require.NoError(t, err)
	assert.Equal(t, "fake", d.Platform())
	assert.ErrorIs(t, d.PopulateData(context.Background(), "x", nil, Params{}), ErrNotImplemented)

	_, err = reg.New("other", Settings{})
	assert.ErrorContains(t, err, "available: fake")
}
