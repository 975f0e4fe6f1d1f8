// Package builder defines how canonical forms become platform artifacts: the
// Builder contract, the artifact and warning types, a platform-keyed
// registry, artifact sinks and the BuildApp batch driver.
package builder

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/goliatone/go-formkit/pkg/schema"
)

// DefaultTableNameLimit is the table name length above which builders emit a
// table_name_too_long warning.
const DefaultTableNameLimit = 20

// Warning codes.
const (
	WarnTableNameTooLong  = "table_name_too_long"
	WarnUnmappedFieldType = "unmapped_field_type"
	WarnMarkupSanitized   = "markup_sanitized"
)

// Builder maps one canonical form onto a platform artifact. Implementations
// are pure: the same form always yields the same artifact.
type Builder interface {
	Platform() string
	BuildForm(form schema.FormSpec) (*Artifact, error)
}

// Artifact is the platform document built for one form.
type Artifact struct {
	FormID   string
	Platform string
	Tree     map[string]any
	Warnings []BuildWarning
}

// FileName is the conventional artifact name, <formId>.json.
func (a *Artifact) FileName() string {
	return a.FormID + ".json"
}

// JSON encodes the tree with sorted keys, two space indentation and a
// trailing newline.
func (a *Artifact) JSON() ([]byte, error) {
	if a == nil || a.Tree == nil {
		return nil, fmt.Errorf("builder: artifact has no tree")
	}
	out, err := json.MarshalIndent(a.Tree, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("builder: encode %s: %w", a.FormID, err)
	}
	return append(out, '\n'), nil
}

// ParseArtifact decodes a previously written artifact. The form id is read
// from the tree's properties.id.
func ParseArtifact(platform string, data []byte) (*Artifact, error) {
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("builder: decode artifact: %w", err)
	}
	if tree == nil {
		return nil, fmt.Errorf("builder: artifact is not a JSON object")
	}
	props, _ := tree["properties"].(map[string]any)
	id, _ := props["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("builder: artifact has no properties.id")
	}
	return &Artifact{FormID: id, Platform: platform, Tree: tree}, nil
}

// BuildWarning is a non-fatal finding: the artifact is still produced.
type BuildWarning struct {
	FormID  string `json:"form_id"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (w BuildWarning) Error() string {
	if w.Field != "" {
		return fmt.Sprintf("builder: %s.%s: %s (%s)", w.FormID, w.Field, w.Message, w.Code)
	}
	return fmt.Sprintf("builder: %s: %s (%s)", w.FormID, w.Message, w.Code)
}

// FormError records a form that failed to build or store.
type FormError struct {
	FormID string
	Err    error
}

func (e *FormError) Error() string {
	return fmt.Sprintf("builder: form %s: %v", e.FormID, e.Err)
}

func (e *FormError) Unwrap() error { return e.Err }

// CheckTableName returns a warning when the form's table name exceeds limit.
// A non-positive limit selects DefaultTableNameLimit.
func CheckTableName(form schema.FormSpec, limit int) (BuildWarning, bool) {
	if limit <= 0 {
		limit = DefaultTableNameLimit
	}
	if len(form.Table) <= limit {
		return BuildWarning{}, false
	}
	return BuildWarning{
		FormID:  form.ID,
		Code:    WarnTableNameTooLong,
		Message: fmt.Sprintf("table name %q is %d characters, the platform limit is %d", form.Table, len(form.Table), limit),
	}, true
}
