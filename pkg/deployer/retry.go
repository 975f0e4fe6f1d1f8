package deployer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Retry defaults.
const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 2 * time.Second
	bodySnippetLimit   = 512
)

// NoRetryDelay retries immediately. A zero Delay means DefaultRetryDelay.
const NoRetryDelay time.Duration = -1

// RetryPolicy bounds retries of transient failures: transport errors,
// timeouts and 5xx responses. Zero values fall back to the defaults.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy returns 3 attempts with a fixed 2s delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, Delay: DefaultRetryDelay}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	switch {
	case p.Delay == 0:
		p.Delay = DefaultRetryDelay
	case p.Delay < 0:
		p.Delay = 0
	}
	return p
}

// Sleeper blocks between attempts. The wait does not observe cancellation.
type Sleeper func(time.Duration)

// Response is what one attempt received.
type Response struct {
	StatusCode int
	Body       []byte
}

// SendFunc performs a single attempt. A non-nil error is a transport
// failure; any response, whatever its status, is returned without error.
type SendFunc func(ctx context.Context, attempt int) (*Response, error)

// Runner drives the PENDING > SENDING > (SUCCESS | RETRYING > SENDING |
// FAILED) state machine for one form.
type Runner struct {
	Platform string
	Policy   RetryPolicy
	Sleep    Sleeper
	Logger   *zap.Logger
	Metrics  *Metrics
	Now      func() time.Time
}

type outcome string

const (
	outcomeSuccess   outcome = "success"
	outcomeTransient outcome = "transient"
	outcomeAuth      outcome = "unauthorized"
	outcomeNotFound  outcome = "not_found"
	outcomeFailed    outcome = "failed"
)

// Run executes send until it succeeds, fails terminally or the policy is
// exhausted. On failure the returned error is a *DeploymentError and the
// Result is still populated.
func (r Runner) Run(ctx context.Context, formID, runID string, send SendFunc) (*Result, error) {
	policy := r.Policy.normalized()
	sleep := r.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	now := r.Now
	if now == nil {
		now = time.Now
	}
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("form", formID), zap.String("run_id", runID))

	started := now()
	res := &Result{FormID: formID, RunID: runID, Platform: r.Platform}
	move := func(state State, attempt int, err error) {
		t := Transition{State: state, Attempt: attempt, At: now()}
		if err != nil {
			t.Error = err.Error()
		}
		res.State = state
		res.Transitions = append(res.Transitions, t)
	}
	fail := func(kind error, status int, cause error) (*Result, error) {
		move(StateFailed, res.Attempts, cause)
		res.Duration = now().Sub(started)
		r.Metrics.observeDeployment(r.Platform, StateFailed, res.Duration)
		logger.Error("deployment failed",
			zap.Int("attempts", res.Attempts),
			zap.Int("status", status),
			zap.Error(cause),
		)
		return res, &DeploymentError{
			FormID:     formID,
			RunID:      runID,
			Kind:       kind,
			StatusCode: status,
			Attempts:   res.Attempts,
			Err:        cause,
		}
	}

	move(StatePending, 0, nil)
	var lastTransient error
	var lastStatus int
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		res.Attempts = attempt
		move(StateSending, attempt, nil)
		logger.Info("sending form",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", policy.MaxAttempts),
		)

		resp, err := send(ctx, attempt)
		kind, cause := classify(resp, err)
		r.Metrics.observeAttempt(r.Platform, kind)
		if resp != nil {
			res.StatusCode = resp.StatusCode
		}

		switch kind {
		case outcomeSuccess:
			res.Response = resp.Body
			move(StateSuccess, attempt, nil)
			res.Duration = now().Sub(started)
			r.Metrics.observeDeployment(r.Platform, StateSuccess, res.Duration)
			logger.Info("form deployed", zap.Int("attempt", attempt), zap.Int("status", resp.StatusCode))
			return res, nil
		case outcomeAuth:
			return fail(ErrAuthentication, resp.StatusCode, cause)
		case outcomeNotFound:
			return fail(ErrEndpointNotFound, resp.StatusCode, cause)
		case outcomeFailed:
			return fail(ErrRequestFailed, resp.StatusCode, cause)
		}

		lastTransient, lastStatus = cause, res.StatusCode
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fail(ErrRequestFailed, lastStatus, fmt.Errorf("%w (last error: %v)", ctxErr, cause))
		}
		if attempt == policy.MaxAttempts {
			break
		}
		move(StateRetrying, attempt, cause)
		logger.Warn("transient deployment failure, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", policy.MaxAttempts),
			zap.Duration("delay", policy.Delay),
			zap.Error(cause),
		)
		sleep(policy.Delay)
	}
	return fail(ErrTransientExhausted, lastStatus, lastTransient)
}

func classify(resp *Response, err error) (outcome, error) {
	if err != nil {
		return outcomeTransient, err
	}
	if resp == nil {
		return outcomeTransient, errors.New("no response")
	}
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return outcomeSuccess, nil
	case code == http.StatusUnauthorized:
		return outcomeAuth, statusError(resp)
	case code == http.StatusNotFound:
		return outcomeNotFound, statusError(resp)
	case code >= 500:
		return outcomeTransient, statusError(resp)
	default:
		return outcomeFailed, statusError(resp)
	}
}

func statusError(resp *Response) *StatusError {
	body := string(resp.Body)
	if len(body) > bodySnippetLimit {
		body = body[:bodySnippetLimit] + "..."
	}
	return &StatusError{StatusCode: resp.StatusCode, Body: body}
}
