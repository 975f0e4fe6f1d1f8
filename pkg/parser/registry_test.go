package parser

import (
	"context"
	"strings"
	"testing"

	"github.com/goliatone/go-formkit/pkg/schema"
)

type stubParser struct {
	name string
	exts []string
}

func (s stubParser) Name() string         { return s.name }
func (s stubParser) Extensions() []string { return s.exts }
func (s stubParser) Parse(context.Context, string, Options) (*schema.AppSpec, error) {
	return nil, nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(stubParser{name: "CSV", exts: []string{".csv"}})

	if err := reg.Register(stubParser{name: "csv"}); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	if err := reg.Register(stubParser{name: " "}); err == nil {
		t.Fatalf("expected empty name to fail")
	}
	if !reg.Has("csv") {
		t.Fatalf("expected csv to be registered")
	}
	if _, err := reg.Get("Csv"); err != nil {
		t.Fatalf("get: %v", err)
	}
	_, err := reg.Get("xml")
	if err == nil || !strings.Contains(err.Error(), "available: csv") {
		t.Fatalf("expected not found error listing names, got %v", err)
	}
}

func TestRegistry_Detect(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(stubParser{name: "markdown", exts: []string{".md", ".markdown"}})
	reg.MustRegister(stubParser{name: "identity", exts: []string{".yaml", ".yml", ".json"}})
	reg.MustRegister(stubParser{name: "openapi", exts: []string{".json"}})

	cases := map[string]string{
		"forms/app.MD":   "markdown",
		"app.yml":        "identity",
		"spec.json":      "identity",
		"notes.markdown": "markdown",
	}
	for path, want := range cases {
		p, err := reg.Detect(path)
		if err != nil {
			t.Fatalf("detect %s: %v", path, err)
		}
		if p.Name() != want {
			t.Fatalf("detect %s: got %s want %s", path, p.Name(), want)
		}
	}
	if _, err := reg.Detect("README"); err == nil {
		t.Fatalf("expected error without extension")
	}
	if _, err := reg.Detect("a.xlsx"); err == nil {
		t.Fatalf("expected error for unclaimed extension")
	}
	if got := strings.Join(reg.List(), ","); got != "identity,markdown,openapi" {
		t.Fatalf("unexpected list %q", got)
	}
}

func TestOptionsVersionOr(t *testing.T) {
	if got := (Options{}).VersionOr(""); got != DefaultVersion {
		t.Fatalf("got %q", got)
	}
	if got := (Options{}).VersionOr("2"); got != "2" {
		t.Fatalf("got %q", got)
	}
	if got := (Options{Version: "3"}).VersionOr("2"); got != "3" {
		t.Fatalf("got %q", got)
	}
}
