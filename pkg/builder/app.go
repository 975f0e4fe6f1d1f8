package builder

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/goliatone/go-formkit/pkg/schema"
)

// AppOptions tunes BuildApp.
type AppOptions struct {
	// Overwrite replaces artifacts that already exist in the sink.
	Overwrite bool
	Logger    *zap.Logger
}

// AppResult reports every form of a BuildApp run. Created and Skipped hold
// artifact locations.
type AppResult struct {
	Created  []string
	Skipped  []string
	Errors   []*FormError
	Warnings []BuildWarning
	// Artifacts holds the artifacts that were built, including skipped ones.
	Artifacts []*Artifact
}

// OK reports whether every form was built or skipped.
func (r *AppResult) OK() bool { return len(r.Errors) == 0 }

// Err joins the per-form errors, nil when there are none.
func (r *AppResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// BuildApp builds every form of app in order and stores the artifacts in
// sink. A failing form, including one whose builder panics, is recorded in
// the result and the batch continues. The returned error is reserved for
// invalid arguments and cancellation.
func BuildApp(ctx context.Context, b Builder, app *schema.AppSpec, sink Sink, opts AppOptions) (*AppResult, error) {
	if b == nil {
		return nil, fmt.Errorf("builder: builder is required")
	}
	if app == nil {
		return nil, fmt.Errorf("builder: app spec is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("builder: sink is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("platform", b.Platform()), zap.String("app", app.Metadata.AppID))

	result := &AppResult{}
	for _, form := range app.Forms {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		log := logger.With(zap.String("form", form.ID))

		artifact, err := safeBuild(b, form)
		if err != nil {
			log.Error("form build failed", zap.Error(err))
			result.Errors = append(result.Errors, &FormError{FormID: form.ID, Err: err})
			continue
		}
		result.Artifacts = append(result.Artifacts, artifact)
		for _, w := range artifact.Warnings {
			log.Warn("build warning", zap.String("code", w.Code), zap.String("field", w.Field), zap.String("detail", w.Message))
		}
		result.Warnings = append(result.Warnings, artifact.Warnings...)

		name := artifact.FileName()
		location := sink.Location(name)
		if !opts.Overwrite {
			exists, err := sink.Exists(ctx, name)
			if err != nil {
				result.Errors = append(result.Errors, &FormError{FormID: form.ID, Err: err})
				continue
			}
			if exists {
				log.Info("artifact exists, skipping", zap.String("location", location))
				result.Skipped = append(result.Skipped, location)
				continue
			}
		}

		data, err := artifact.JSON()
		if err == nil {
			err = sink.Write(ctx, name, data)
		}
		if err != nil {
			log.Error("artifact write failed", zap.Error(err))
			result.Errors = append(result.Errors, &FormError{FormID: form.ID, Err: err})
			continue
		}
		log.Info("artifact written", zap.String("location", location), zap.Int("bytes", len(data)))
		result.Created = append(result.Created, location)
	}
	return result, nil
}

func safeBuild(b Builder, form schema.FormSpec) (artifact *Artifact, err error) {
	defer func() {
		if r := recover(); r != nil {
			artifact = nil
			err = fmt.Errorf("builder: panic building form %s: %v", form.ID, r)
		}
	}()
	artifact, err = b.BuildForm(form)
	if err == nil && artifact == nil {
		err = fmt.Errorf("builder: %s builder returned no artifact for form %s", b.Platform(), form.ID)
	}
	return artifact, err
}
