package report

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-formkit/pkg/builder"
	"github.com/goliatone/go-formkit/pkg/deployer"
	"github.com/goliatone/go-formkit/pkg/schema"
)

func sampleApp(t *testing.T) *schema.AppSpec {
	t.Helper()
	customer := schema.NewForm("customer", "Customer", "customer",
		schema.NewField("code", schema.FieldTypeText, schema.PrimaryKey(), schema.WithSize(20)),
		schema.NewField("tier", schema.FieldTypeSelect, schema.WithOptions(
			schema.SelectOption{Value: "gold"}, schema.SelectOption{Value: "silver"},
		)),
	)
	customer.Description = "R&D partners"
	customer.Indexes = []schema.IndexSpec{{Fields: []string{"tier", "code"}, Unique: true}}
	invoice := schema.NewForm("invoice", "Invoice", "invoice",
		schema.NewField("customer", schema.FieldTypeForeignKey, schema.WithReference("customer", "code", "")),
		schema.NewField("issued", schema.FieldTypeDate, schema.WithDefault(schema.Symbolic(schema.DefaultCurrentDate))),
	)
	app, err := schema.NewAppSpec("1.0.0", schema.Metadata{AppID: "crm", AppName: "Customer Relations"}, customer, invoice)
	require.NoError(t, err)
	return app
}

func TestRender_AppSummary(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	out, err := r.String(Data{App: sampleApp(t), GeneratedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "# Customer Relations\n"))
	assert.Contains(t, out, "- Generated: 2026-01-02T03:04:05Z")
	assert.Contains(t, out, "| `customer` | Customer | `customer` | 2 | code |")
	assert.Contains(t, out, "| `invoice` | Invoice | `invoice` | 2 | - |")
	assert.Contains(t, out, "| `code` | TEXT | Code | primary key, required, size 20 | - |")
	assert.Contains(t, out, "| `tier` | SELECT | Tier | - | gold / silver |")
	assert.Contains(t, out, "| `customer` | FOREIGN_KEY | Customer | - | customer.code |")
	assert.Contains(t, out, "default $current_date")
	assert.Contains(t, out, "R&D partners")
	assert.Contains(t, out, "Indexes: unique (tier, code)")
	assert.NotContains(t, out, "## Build")
	assert.NotContains(t, out, "## Deployment")
}

func TestRender_BuildAndDeploy(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	build := &builder.AppResult{
		Created: []string{"out/customer.json"},
		Skipped: []string{"out/invoice.json"},
		Warnings: []builder.BuildWarning{{
			FormID: "customer", Code: builder.WarnTableNameTooLong, Message: "too long",
		}},
	}
	deploy := &deployer.ManyResult{
		Successful: []string{"customer"},
		Failed:     []string{"invoice"},
		Errors:     []error{errors.New("deployer: form invoice: request failed")},
	}
	out, err := r.String(Data{App: sampleApp(t), Build: build, Deploy: deploy})
	require.NoError(t, err)

	assert.Contains(t, out, "- Skipped: 1 (out/invoice.json)")
	assert.Contains(t, out, "| `customer` | - | table_name_too_long | too long |")
	assert.Contains(t, out, "- Successful: 1 (customer)")
	assert.Contains(t, out, "- Failed: 1 (invoice)")
	assert.Contains(t, out, "  - deployer: form invoice: request failed")
}

func TestRender_CustomTemplate(t *testing.T) {
	files := fstest.MapFS{"short.tpl": {Data: []byte("{{ app.id }}:{{ forms|length }}")}}
	r, err := New(WithTemplatesFS(files, "short.tpl"))
	require.NoError(t, err)

	out, err := r.String(Data{App: sampleApp(t)})
	require.NoError(t, err)
	assert.Equal(t, "crm:2", out)

	_, err = r.String(Data{})
	assert.Error(t, err)

	_, err = New(WithTemplatesFS(files, "missing.tpl"))
	assert.Error(t, err)
}

func TestRender_GlobalData(t *testing.T) {
	r, err := New(WithGlobalData(map[string]any{"generator": "formkit", "app": "shadowed"}))
	require.NoError(t, err)

	out, err := r.String(Data{App: sampleApp(t)})
	require.NoError(t, err)
	assert.Contains(t, out, "Generated by formkit")
	assert.Contains(t, out, "# Customer Relations")

	plain, err := New()
	require.NoError(t, err)
	out, err = plain.String(Data{App: sampleApp(t)})
	require.NoError(t, err)
	assert.NotContains(t, out, "Generated by")
}
