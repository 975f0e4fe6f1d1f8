// Package deployer pushes built artifacts to a remote platform. It owns the
// per-form state machine, the retry policy, the error kinds callers branch
// on and the sequential DeployMany batch driver. Platform packages supply
// single-attempt transports.
package deployer

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-formkit/pkg/builder"
)

// State is one step of a form deployment.
type State string

const (
	StatePending  State = "PENDING"
	StateSending  State = "SENDING"
	StateSuccess  State = "SUCCESS"
	StateRetrying State = "RETRYING"
	StateFailed   State = "FAILED"
)

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed
}

// Params describe where and how one artifact is deployed.
type Params struct {
	AppID      string
	AppVersion string
	// APIID identifies the receiving form creator endpoint on the server.
	APIID string
	// TableName overrides the table name read from the artifact.
	TableName         string
	CreateAPIEndpoint bool
	APIName           string
	CreateCRUD        bool
}

// Deployer sends artifacts to one platform.
type Deployer interface {
	Platform() string
	DeployForm(ctx context.Context, artifact *builder.Artifact, params Params) (*Result, error)
	// PopulateData pushes rows into an already deployed form.
	PopulateData(ctx context.Context, formID string, rows []map[string]any, params Params) error
}

// Transition records a state change.
type Transition struct {
	State   State     `json:"state"`
	Attempt int       `json:"attempt"`
	At      time.Time `json:"at"`
	Error   string    `json:"error,omitempty"`
}

// Result is the outcome of one DeployForm call. It is returned alongside the
// error on failure so callers can inspect the transitions.
type Result struct {
	FormID      string        `json:"form_id"`
	RunID       string        `json:"run_id"`
	Platform    string        `json:"platform"`
	State       State         `json:"state"`
	Attempts    int           `json:"attempts"`
	StatusCode  int           `json:"status_code,omitempty"`
	Response    []byte        `json:"-"`
	Transitions []Transition  `json:"transitions"`
	Duration    time.Duration `json:"duration"`
}

// Settings configure a platform deployer built through a Factory.
type Settings struct {
	BaseURL string
	APIKey  string
	// CreatorPath is appended to BaseURL to reach the form creator endpoint.
	CreatorPath string
	// RefererTemplate supports {root} (scheme://host of BaseURL) and {appId}.
	RefererTemplate string
	Timeout         time.Duration
	Retry           RetryPolicy
	Sleeper         Sleeper
	HTTPClient      *http.Client
	Logger          *zap.Logger
	Metrics         *Metrics
}

// LoggerOrNop returns the configured logger or a no-op one.
func (s Settings) LoggerOrNop() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
