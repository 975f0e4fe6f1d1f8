package orchestrator_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/goliatone/go-formkit/internal/sandbox"
	"github.com/goliatone/go-formkit/pkg/builder"
	"github.com/goliatone/go-formkit/pkg/deployer"
	"github.com/goliatone/go-formkit/pkg/orchestrator"
	"github.com/goliatone/go-formkit/pkg/parser"
	"github.com/goliatone/go-formkit/pkg/schema"
)

const spec = "# Customer Relations\n" +
	"- app_id: crm\n" +
	"- version: 1.2.0\n" +
	"\n" +
	"## Customer\n" +
	"\n" +
	"| Field | Label | Type | Required | Size |\n" +
	"|-------|-------|------|----------|------|\n" +
	"| code | Code | text | yes | 20 |\n" +
	"| name | Name | text | yes | |\n" +
	"\n" +
	"## Invoice\n" +
	"\n" +
	"| id | type | references | pk |\n" +
	"| --- | --- | --- | --- |\n" +
	"| number | int | | x |\n" +
	"| customer | text | customer.code.name | |\n"

func writeSpec(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestParse_DetectsAndSelects(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	orch := orchestrator.New(orchestrator.WithLogger(zap.New(core)))
	path := writeSpec(t, "crm.md", spec)

	app, err := orch.Parse(context.Background(), orchestrator.ParseRequest{Input: path})
	require.NoError(t, err)
	assert.Equal(t, "crm", app.Metadata.AppID)
	require.Len(t, app.Forms, 2)
	assert.Equal(t, 1, logs.FilterMessage("spec parsed").Len())

	renamed := writeSpec(t, "crm.txt", spec)
	_, err = orch.Parse(context.Background(), orchestrator.ParseRequest{Input: renamed})
	assert.ErrorContains(t, err, "no parser registered")

	app, err = orch.Parse(context.Background(), orchestrator.ParseRequest{Input: renamed, Parser: "markdown"})
	require.NoError(t, err)
	assert.Equal(t, "invoice", app.Forms[1].ID)
}

func TestParse_Errors(t *testing.T) {
	orch := orchestrator.New()

	_, err := orch.Parse(context.Background(), orchestrator.ParseRequest{})
	var argErr *schema.ArgumentError
	assert.ErrorAs(t, err, &argErr)

	_, err = orch.Parse(context.Background(), orchestrator.ParseRequest{Input: "x.md", Parser: "excel"})
	assert.ErrorContains(t, err, "excel")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = orch.Parse(ctx, orchestrator.ParseRequest{Input: "x.md"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaults_RegisterBuiltIns(t *testing.T) {
	orch := orchestrator.New()
	assert.Equal(t, []string{"csv", "identity", "markdown", "openapi", "postgres", "sqlite"}, orch.Parsers().List())
	assert.Equal(t, []string{"joget"}, orch.Builders().List())
	assert.Equal(t, []string{"joget"}, orch.Deployers().List())

	empty := orchestrator.New(orchestrator.WithParsers(parser.NewRegistry()))
	assert.Empty(t, empty.Parsers().List())
}

func TestBuild_WritesArtifacts(t *testing.T) {
	orch := orchestrator.New()
	app, err := orch.Parse(context.Background(), orchestrator.ParseRequest{Input: writeSpec(t, "crm.md", spec)})
	require.NoError(t, err)

	sink := builder.NewMemorySink()
	res, err := orch.Build(context.Background(), orchestrator.BuildRequest{App: app, Sink: sink})
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, []string{"memory://customer.json", "memory://invoice.json"}, res.Created)
	require.Len(t, res.Artifacts, 2)

	again, err := orch.Build(context.Background(), orchestrator.BuildRequest{App: app, Sink: sink})
	require.NoError(t, err)
	assert.Len(t, again.Skipped, 2)

	_, err = orch.Build(context.Background(), orchestrator.BuildRequest{App: app, Platform: "appsmith"})
	assert.ErrorContains(t, err, "appsmith")
}

func TestBuild_TableNameLimit(t *testing.T) {
	orch := orchestrator.New(orchestrator.WithTableNameLimit(5))
	app, err := schema.NewAppSpec("1.0.0", schema.Metadata{AppID: "crm"},
		schema.NewForm("customer", "Customer", "crm_customer",
			schema.NewField("code", schema.FieldTypeText, schema.PrimaryKey()),
		),
	)
	require.NoError(t, err)
	res, err := orch.Build(context.Background(), orchestrator.BuildRequest{App: app})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, builder.WarnTableNameTooLong, res.Warnings[0].Code)
}

func TestRun_DeploysToSandbox(t *testing.T) {
	sb := sandbox.New(sandbox.Options{APIID: "API-1", APIKey: "secret"})
	srv := httptest.NewServer(sb.Handler())
	t.Cleanup(srv.Close)

	var slept int
	orch := orchestrator.New()
	res, err := orch.Run(context.Background(), orchestrator.RunRequest{
		Parse: orchestrator.ParseRequest{Input: writeSpec(t, "crm.md", spec)},
		Settings: deployer.Settings{
			BaseURL: srv.URL + "/jw",
			APIKey:  "secret",
			Retry:   deployer.RetryPolicy{MaxAttempts: 2, Delay: time.Second},
			Sleeper: func(time.Duration) { slept++ },
		},
		Params: deployer.Params{APIID: "API-1", CreateCRUD: true},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Deploy)
	assert.Equal(t, []string{"customer", "invoice"}, res.Deploy.Successful)
	assert.Zero(t, slept)

	stored := sb.Deployments()
	require.Len(t, stored, 2)
	assert.Equal(t, "crm", stored[0].AppID)
	assert.Equal(t, "invoice", stored[1].FormID)
}

func TestRun_StopsAtFirstFailingStage(t *testing.T) {
	orch := orchestrator.New()

	res, err := orch.Run(context.Background(), orchestrator.RunRequest{
		Parse:      orchestrator.ParseRequest{Input: writeSpec(t, "crm.md", spec)},
		SkipDeploy: true,
	})
	require.NoError(t, err)
	assert.Len(t, res.Build.Artifacts, 2)
	assert.Nil(t, res.Deploy)

	res, err = orch.Run(context.Background(), orchestrator.RunRequest{
		Parse:    orchestrator.ParseRequest{Input: writeSpec(t, "crm.md", spec)},
		Settings: deployer.Settings{BaseURL: "joget.local"},
		Params:   deployer.Params{APIID: "API-1"},
	})
	var cfgErr *deployer.ConfigError
	require.True(t, errors.As(err, &cfgErr), "got %v", err)
	assert.NotNil(t, res.Build)
	assert.Nil(t, res.Deploy)

	res, err = orch.Run(context.Background(), orchestrator.RunRequest{
		Parse: orchestrator.ParseRequest{Input: writeSpec(t, "broken.md", "## Empty\n")},
	})
	assert.Error(t, err)
	assert.Nil(t, res.App)
}
