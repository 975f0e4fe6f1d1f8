package formkit

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-formkit/pkg/schema"
)

const crmYAML = `version: 1.0.0
metadata:
  app_id: crm
forms:
  - id: customer
    name: Customer
    table: crm_customer
    fields:
      - id: code
        type: TEXT
        primary_key: true
      - id: name
        type: TEXT
        required: true
`

func TestReportTemplatesContainsDefault(t *testing.T) {
	_, err := fs.ReadFile(ReportTemplates(), "report.md.tpl")
	require.NoError(t, err)
}

func TestBuildToDir(t *testing.T) {
	input := filepath.Join(t.TempDir(), "crm.yaml")
	require.NoError(t, os.WriteFile(input, []byte(crmYAML), 0o644))
	out := t.TempDir()

	res, err := BuildToDir(context.Background(), input, out, false)
	require.NoError(t, err)
	require.True(t, res.OK())
	assert.FileExists(t, filepath.Join(out, "customer.json"))

	res, err = BuildToDir(context.Background(), input, out, false)
	require.NoError(t, err)
	assert.Len(t, res.Skipped, 1)
}

func TestParseAndReport(t *testing.T) {
	input := filepath.Join(t.TempDir(), "crm.yaml")
	require.NoError(t, os.WriteFile(input, []byte(crmYAML), 0o644))

	app, err := Parse(context.Background(), input, "", ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, "crm", app.Metadata.AppName)

	var buf bytes.Buffer
	require.NoError(t, Report(&buf, ReportData{App: app}, nil, ""))
	assert.Contains(t, buf.String(), "crm_customer")

	custom := fstest.MapFS{"short.tpl": {Data: []byte("{{ app.id }}:{{ forms|length }}")}}
	buf.Reset()
	require.NoError(t, Report(&buf, ReportData{App: app}, custom, "short.tpl"))
	assert.Equal(t, "crm:1", buf.String())
}

func TestNewParser(t *testing.T) {
	p, err := NewParser("csv")
	require.NoError(t, err)
	assert.Equal(t, "csv", p.Name())

	_, err = NewParser("excel")
	assert.Error(t, err)
}

func TestNewLoader(t *testing.T) {
	l := NewLoader(fstest.MapFS{"crm.yaml": {Data: []byte(crmYAML)}}, 0)
	doc, err := l.Load(context.Background(), schema.SourceFromFS("crm.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(doc.Raw()), "crm_customer")
}
