// Package report renders a markdown summary of an app and of the build and
// deploy runs performed on it.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-formkit/pkg/builder"
	"github.com/goliatone/go-formkit/pkg/deployer"
	"github.com/goliatone/go-formkit/pkg/schema"
)

//go:embed templates/*.tpl
var embedded embed.FS

// DefaultTemplate is the embedded template name.
const DefaultTemplate = "report.md.tpl"

// Data is what a report summarises. Build and Deploy are optional.
type Data struct {
	App         *schema.AppSpec
	Build       *builder.AppResult
	Deploy      *deployer.ManyResult
	GeneratedAt time.Time
}

// TemplatesFS exposes the embedded templates, rooted at the template files.
func TemplatesFS() fs.FS {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		return embedded
	}
	return sub
}

// Option configures a Renderer.
type Option func(*config)

type config struct {
	templates fs.FS
	name      string
	globals   pongo2.Context
}

// WithTemplatesFS loads templates from files instead of the embedded set.
func WithTemplatesFS(files fs.FS, name string) Option {
	return func(cfg *config) {
		if files != nil && name != "" {
			cfg.templates = files
			cfg.name = name
		}
	}
}

// WithGlobalData seeds values visible to every template render. Keys set by
// the report itself (app, forms, build, deploy) take precedence.
func WithGlobalData(data map[string]any) Option {
	return func(cfg *config) {
		if len(data) == 0 {
			return
		}
		if cfg.globals == nil {
			cfg.globals = make(pongo2.Context, len(data))
		}
		for key, value := range data {
			if key = strings.TrimSpace(key); key != "" {
				cfg.globals[key] = value
			}
		}
	}
}

// Renderer executes the report template.
type Renderer struct {
	tmpl *pongo2.Template
}

// New parses the report template.
func New(opts ...Option) (*Renderer, error) {
	cfg := config{templates: TemplatesFS(), name: DefaultTemplate}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	set := pongo2.NewSet("formkit-report", pongo2.NewFSLoader(cfg.templates))
	if len(cfg.globals) > 0 {
		if set.Globals == nil {
			set.Globals = make(pongo2.Context)
		}
		set.Globals.Update(cfg.globals)
	}
	tmpl, err := set.FromFile(cfg.name)
	if err != nil {
		return nil, fmt.Errorf("report: load template %q: %w", cfg.name, err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render writes the report for data to w.
func (r *Renderer) Render(w io.Writer, data Data) error {
	if data.App == nil {
		return fmt.Errorf("report: app is required")
	}
	if err := r.tmpl.ExecuteWriter(viewContext(data), w); err != nil {
		return fmt.Errorf("report: execute: %w", err)
	}
	return nil
}

// String renders the report into a string.
func (r *Renderer) String(data Data) (string, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func viewContext(data Data) pongo2.Context {
	app := data.App
	name := app.Metadata.AppName
	if name == "" {
		name = app.Metadata.AppID
	}
	ctx := pongo2.Context{
		"app": map[string]any{
			"id":      app.Metadata.AppID,
			"name":    name,
			"version": app.Version,
		},
		"forms": formViews(app.Forms),
	}
	if !data.GeneratedAt.IsZero() {
		ctx["generated_at"] = data.GeneratedAt.UTC().Format(time.RFC3339)
	}
	if b := data.Build; b != nil {
		warnings := make([]map[string]any, 0, len(b.Warnings))
		for _, w := range b.Warnings {
			warnings = append(warnings, map[string]any{
				"form":    w.FormID,
				"field":   w.Field,
				"code":    w.Code,
				"message": w.Message,
			})
		}
		ctx["build"] = map[string]any{
			"created":  b.Created,
			"skipped":  b.Skipped,
			"errors":   errorStrings(b.Errors),
			"warnings": warnings,
		}
	}
	if d := data.Deploy; d != nil {
		ctx["deploy"] = map[string]any{
			"successful": d.Successful,
			"failed":     d.Failed,
			"skipped":    d.Skipped,
			"errors":     errorStrings(d.Errors),
		}
	}
	return ctx
}

func formViews(forms []schema.FormSpec) []map[string]any {
	out := make([]map[string]any, 0, len(forms))
	for _, form := range forms {
		fields := make([]map[string]any, 0, len(form.Fields))
		for _, f := range form.Fields {
			fields = append(fields, map[string]any{
				"id":     f.ID,
				"type":   f.Type.String(),
				"label":  f.Label,
				"flags":  flags(f),
				"source": source(f),
			})
		}
		indexes := make([]string, 0, len(form.Indexes))
		for _, idx := range form.Indexes {
			text := "(" + strings.Join(idx.Fields, ", ") + ")"
			if idx.Unique {
				text = "unique " + text
			}
			indexes = append(indexes, text)
		}
		pk := ""
		if field, ok := form.PrimaryKey(); ok {
			pk = field.ID
		}
		out = append(out, map[string]any{
			"id":          form.ID,
			"name":        form.Name,
			"table":       form.Table,
			"description": form.Description,
			"field_count": len(form.Fields),
			"primary_key": pk,
			"fields":      fields,
			"indexes":     indexes,
		})
	}
	return out
}

func flags(f schema.FieldSpec) []string {
	var out []string
	if f.PrimaryKey {
		out = append(out, "primary key")
	}
	if f.Required {
		out = append(out, "required")
	}
	if f.Unique {
		out = append(out, "unique")
	}
	if f.ReadOnly {
		out = append(out, "readonly")
	}
	if f.Size > 0 {
		out = append(out, fmt.Sprintf("size %d", f.Size))
	}
	if !f.Default.IsZero() {
		out = append(out, "default "+f.Default.String())
	}
	return out
}

// source describes where a choice field's options come from.
func source(f schema.FieldSpec) string {
	if ref := f.References; ref != nil {
		return fmt.Sprintf("%s.%s", ref.Form, ref.Field)
	}
	if len(f.Options) == 0 {
		return ""
	}
	values := make([]string, len(f.Options))
	for i, opt := range f.Options {
		values[i] = opt.Value
	}
	return strings.Join(values, " / ")
}

func errorStrings[E error](errs []E) []string {
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}
