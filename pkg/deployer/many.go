package deployer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/goliatone/go-formkit/pkg/builder"
)

// ManyOptions configure DeployMany.
type ManyOptions struct {
	// StopOnError leaves the remaining artifacts unattempted after the first
	// failure.
	StopOnError bool
	Logger      *zap.Logger
}

// ManyResult summarises a batch.
type ManyResult struct {
	Successful []string
	Failed     []string
	// Skipped lists forms never attempted because the batch stopped early.
	Skipped []string
	Errors  []error
	Results []*Result
}

// OK reports whether every form was deployed.
func (r *ManyResult) OK() bool {
	return len(r.Failed) == 0 && len(r.Skipped) == 0
}

// Err joins the per-form errors.
func (r *ManyResult) Err() error {
	return errors.Join(r.Errors...)
}

// DeployMany deploys artifacts one at a time, in order. The remote form
// creator alters the app's schema, so forms are never sent concurrently.
// A cancelled context stops the batch; the remaining forms are skipped.
func DeployMany(ctx context.Context, d Deployer, artifacts []*builder.Artifact, params Params, opts ManyOptions) (*ManyResult, error) {
	if d == nil {
		return nil, fmt.Errorf("deployer: deployer is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	out := &ManyResult{}
	for i, artifact := range artifacts {
		formID := artifactID(artifact)
		if err := ctx.Err(); err != nil {
			out.Skipped = append(out.Skipped, remainingIDs(artifacts[i:])...)
			return out, err
		}

		res, err := d.DeployForm(ctx, artifact, params)
		if res != nil {
			out.Results = append(out.Results, res)
		}
		if err != nil {
			out.Failed = append(out.Failed, formID)
			out.Errors = append(out.Errors, err)
			logger.Warn("form deployment failed", zap.String("form", formID), zap.Error(err))
			if opts.StopOnError {
				out.Skipped = append(out.Skipped, remainingIDs(artifacts[i+1:])...)
				logger.Warn("stopping batch on first failure", zap.Int("skipped", len(out.Skipped)))
				return out, nil
			}
			continue
		}
		out.Successful = append(out.Successful, formID)
	}
	return out, nil
}

func artifactID(a *builder.Artifact) string {
	if a == nil {
		return ""
	}
	return a.FormID
}

func remainingIDs(artifacts []*builder.Artifact) []string {
	ids := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		ids = append(ids, artifactID(a))
	}
	return ids
}

// Prepare checks params and the artifact before anything is sent and
// returns the form id, name and table name to transmit.
func Prepare(artifact *builder.Artifact, params Params) (formID, formName, table string, err error) {
	if artifact != nil {
		formID = artifact.FormID
		if props, ok := artifact.Tree["properties"].(map[string]any); ok {
			if formID == "" {
				formID, _ = props["id"].(string)
			}
			formName, _ = props["name"].(string)
			table, _ = props["tableName"].(string)
		}
	}
	if params.AppID == "" {
		return "", "", "", &ConfigError{FormID: formID, Field: "app id", Reason: "is required"}
	}
	if params.APIID == "" {
		return "", "", "", &ConfigError{FormID: formID, Field: "api id", Reason: "is required"}
	}
	if artifact == nil || artifact.Tree == nil {
		return "", "", "", &ConfigError{Field: "artifact", Reason: "is empty"}
	}
	if formID == "" {
		return "", "", "", &ConfigError{Field: "form id", Reason: "cannot be determined from the artifact"}
	}
	if params.TableName != "" {
		table = params.TableName
	}
	if table == "" {
		table = formID
	}
	if formName == "" {
		formName = formID
	}
	return formID, formName, table, nil
}
