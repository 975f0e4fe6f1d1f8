package validation

import (
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-formkit/pkg/schema"
)

// Options configures Validate and Check.
type Options struct {
	// Input names the document in errors, usually its path.
	Input string
	// StrictReferences turns references to undeclared forms into violations.
	StrictReferences bool
	// Logger receives advisory warnings. Nil discards them.
	Logger *zap.Logger
}

// Validate decodes data into a normalized AppSpec. Every violation is
// collected into a single *schema.SchemaValidationError.
func Validate(data map[string]any, opts Options) (*schema.AppSpec, error) {
	app, issues := run(data, opts)
	if len(issues) > 0 {
		return nil, &schema.SchemaValidationError{Input: opts.Input, Issues: issues}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if !opts.StrictReferences {
		for _, warning := range schema.UnresolvedReferences(app) {
			logger.Warn("unresolved form reference",
				zap.String("input", opts.Input),
				zap.String("path", warning.Path),
				zap.String("detail", warning.Message),
			)
		}
	}
	return app, nil
}

// Check runs Validate and reports violations as "<path>: <message>". The
// result is empty when data is valid.
func Check(data map[string]any, opts Options) []string {
	_, issues := run(data, opts)
	return issues.Strings()
}

// Issues is Check returning structured issues.
func Issues(data map[string]any, opts Options) schema.Issues {
	_, issues := run(data, opts)
	return issues
}

func run(data map[string]any, opts Options) (*schema.AppSpec, schema.Issues) {
	d := &decoder{}
	app := d.app(data)
	app.Normalize()

	issues := d.issues
	for _, issue := range app.Violations(schema.CheckOptions{StrictReferences: opts.StrictReferences}) {
		if covered(d.issues, issue.Path) {
			continue
		}
		issues = append(issues, issue)
	}
	return app, issues
}

// covered reports whether a decode issue already explains path: the same path,
// an ancestor or a descendant of it. Unknown keys never cover anything.
func covered(issues schema.Issues, path string) bool {
	for _, issue := range issues {
		if issue.Rule == schema.RuleUnknownKey {
			continue
		}
		if issue.Path == path ||
			strings.HasPrefix(path, issue.Path+".") || strings.HasPrefix(path, issue.Path+"[") ||
			strings.HasPrefix(issue.Path, path+".") || strings.HasPrefix(issue.Path, path+"[") {
			return true
		}
	}
	return false
}
