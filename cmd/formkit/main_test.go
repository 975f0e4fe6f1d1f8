package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/goliatone/go-formkit/internal/prompt"
	"github.com/goliatone/go-formkit/internal/sandbox"
	"github.com/goliatone/go-formkit/pkg/config"
	"github.com/goliatone/go-formkit/pkg/deployer"
)

const crmMarkdown = "# Customer Relations\n" +
	"- app_id: crm\n" +
	"- version: 1.0.0\n" +
	"\n" +
	"## Customer\n" +
	"\n" +
	"| Field | Type | Required |\n" +
	"|-------|------|----------|\n" +
	"| code | text | yes |\n" +
	"| name | text | yes |\n" +
	"\n" +
	"## Invoice\n" +
	"\n" +
	"| Field | Type | PK |\n" +
	"|-------|------|----|\n" +
	"| number | int | x |\n"

type env struct {
	dir    string
	input  string
	config string
	sb     *sandbox.Server
}

func newEnv(t *testing.T, extraConfig string) *env {
	t.Helper()
	sb := sandbox.New(sandbox.Options{APIID: "API-1", APIKey: "secret"})
	srv := httptest.NewServer(sb.Handler())
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	e := &env{
		dir:    dir,
		input:  filepath.Join(dir, "crm.md"),
		config: filepath.Join(dir, "formkit.yaml"),
		sb:     sb,
	}
	require.NoError(t, os.WriteFile(e.input, []byte(crmMarkdown), 0o644))
	cfg := fmt.Sprintf(`server:
  base_url: %s/jw
  api_id: API-1
  api_key: secret
app:
  app_id: crm
retry:
  max_attempts: 2
  delay: 1ms
build:
  output_dir: %s
%s`, srv.URL, filepath.Join(dir, "build"), extraConfig)
	require.NoError(t, os.WriteFile(e.config, []byte(cfg), 0o644))
	return e
}

func execute(t *testing.T, c *cli, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c.out = &out
	c.errOut = &out
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	cmd := newRootCmd(c)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestParse_PrintsCanonicalYAML(t *testing.T) {
	e := newEnv(t, "")
	out, err := execute(t, &cli{}, "parse", e.input, "--config", e.config)
	require.NoError(t, err)
	assert.Contains(t, out, "app_id: crm")
	assert.Contains(t, out, "id: invoice")

	target := filepath.Join(e.dir, "crm.json")
	out, err = execute(t, &cli{}, "parse", e.input, "--config", e.config, "-o", target)
	require.NoError(t, err)
	assert.Contains(t, out, "2 forms")
	assert.FileExists(t, target)

	_, err = execute(t, &cli{}, "parse", e.input, "--config", e.config, "--set", "broken")
	assert.ErrorContains(t, err, "key=value")
}

func TestValidate(t *testing.T) {
	e := newEnv(t, "")
	good := filepath.Join(e.dir, "crm.yaml")
	_, err := execute(t, &cli{}, "parse", e.input, "--config", e.config, "-o", good)
	require.NoError(t, err)

	out, err := execute(t, &cli{}, "validate", good, "--config", e.config, "--json-schema")
	require.NoError(t, err)
	assert.Contains(t, out, "is valid: app crm, 2 form(s)")

	bad := filepath.Join(e.dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("version: x\nmetadata: {}\nforms: []\n"), 0o644))
	out, err = execute(t, &cli{}, "validate", bad, "--config", e.config)
	assert.ErrorContains(t, err, "problem(s)")
	assert.Contains(t, out, "version")
}

func TestSchema(t *testing.T) {
	e := newEnv(t, "")
	out, err := execute(t, &cli{}, "schema", "--config", e.config)
	require.NoError(t, err)
	assert.Contains(t, out, `"forms"`)
}

func TestBuildThenDeploy(t *testing.T) {
	e := newEnv(t, "")
	out, err := execute(t, &cli{}, "build", e.input, "--config", e.config)
	require.NoError(t, err)
	assert.Contains(t, out, "created")
	assert.FileExists(t, filepath.Join(e.dir, "build", "customer.json"))
	assert.FileExists(t, filepath.Join(e.dir, "build", "invoice.json"))

	out, err = execute(t, &cli{}, "build", e.input, "--config", e.config)
	require.NoError(t, err)
	assert.Contains(t, out, "skipped")

	out, err = execute(t, &cli{}, "deploy", filepath.Join(e.dir, "build"), "--config", e.config)
	require.NoError(t, err)
	assert.Contains(t, out, "deployed 2 of 2 form(s)")
	assert.Len(t, e.sb.Deployments(), 2)
}

func TestDeploy_ReportsFailures(t *testing.T) {
	e := newEnv(t, "")
	_, err := execute(t, &cli{}, "build", e.input, "--config", e.config)
	require.NoError(t, err)

	e.sb.InjectFaults(503, 503)
	out, err := execute(t, &cli{}, "deploy", filepath.Join(e.dir, "build"), "--config", e.config, "--stop-on-error")
	require.Error(t, err)
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "skipped  invoice")
	assert.Empty(t, e.sb.Deployments())

	_, err = execute(t, &cli{}, "deploy", filepath.Join(e.dir, "missing"), "--config", e.config)
	assert.Error(t, err)
}

func TestRun_WithReport(t *testing.T) {
	e := newEnv(t, "")
	reportPath := filepath.Join(e.dir, "report.md")
	out, err := execute(t, &cli{}, "run", e.input, "--config", e.config, "--report", reportPath)
	require.NoError(t, err)
	assert.Contains(t, out, "success  customer")
	assert.Len(t, e.sb.Deployments(), 2)

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Customer Relations")
	assert.Contains(t, string(data), "Generated by formkit")
}

func TestRun_DryRunNeedsNoServer(t *testing.T) {
	e := newEnv(t, "")
	_, err := execute(t, &cli{}, "run", e.input, "--config", e.config, "--dry-run")
	require.NoError(t, err)
	assert.Empty(t, e.sb.Deployments())
	assert.NoDirExists(t, filepath.Join(e.dir, "build"))
}

func TestReport_Stdout(t *testing.T) {
	e := newEnv(t, "")
	out, err := execute(t, &cli{}, "report", e.input, "--config", e.config, "--build")
	require.NoError(t, err)
	assert.Contains(t, out, "`customer`")
}

func TestMetricsTextfile(t *testing.T) {
	dir := t.TempDir()
	textfile := filepath.Join(dir, "formkit.prom")
	e := newEnv(t, fmt.Sprintf("metrics:\n  enabled: true\n  textfile: %s\n", textfile))

	_, err := execute(t, &cli{}, "run", e.input, "--config", e.config)
	require.NoError(t, err)
	data, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `formkit_deployer_attempts_total{outcome="success",platform="joget"} 2`)
}

type scripted struct {
	passwords []string
	confirms  []bool
}

func (s *scripted) Input(context.Context, prompt.InputConfig) (string, error) {
	return "", errors.New("unexpected input prompt")
}

func (s *scripted) Password(context.Context, prompt.InputConfig) (string, error) {
	if len(s.passwords) == 0 {
		return "", errors.New("no password scripted")
	}
	v := s.passwords[0]
	s.passwords = s.passwords[1:]
	return v, nil
}

func (s *scripted) Confirm(context.Context, prompt.ConfirmConfig) (bool, error) {
	if len(s.confirms) == 0 {
		return false, errors.New("no confirm scripted")
	}
	v := s.confirms[0]
	s.confirms = s.confirms[1:]
	return v, nil
}

func (s *scripted) Select(context.Context, prompt.SelectConfig) (int, error) {
	return -1, errors.New("unexpected select prompt")
}

func TestInteractive_PromptsForMissingKey(t *testing.T) {
	e := newEnv(t, "")
	body, err := os.ReadFile(e.config)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(e.config, bytes.Replace(body, []byte("  api_key: secret\n"), nil, 1), 0o644))

	driver := &scripted{passwords: []string{"secret"}, confirms: []bool{false}}
	_, err = execute(t, &cli{driver: driver}, "build", e.input, "--config", e.config)
	require.NoError(t, err)

	_, err = execute(t, &cli{}, "deploy", filepath.Join(e.dir, "build"), "--config", e.config)
	assert.ErrorContains(t, err, "server.api_key")

	out, err := execute(t, &cli{driver: driver}, "deploy", filepath.Join(e.dir, "build"), "--config", e.config)
	require.NoError(t, err)
	assert.Contains(t, out, "deployed 2 of 2")
	assert.Empty(t, driver.passwords)
}

func TestDeployTarget_RetryDelay(t *testing.T) {
	cfg := config.Default()
	cfg.Server.BaseURL = "http://joget.local/jw"
	cfg.Server.APIKey = "secret"
	cfg.Server.APIID = "API-1"

	c := &cli{cfg: cfg, logger: zap.NewNop()}
	settings, _, err := c.deployTarget(context.Background(), "crm")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultRetryDelay, settings.Retry.Delay)

	cfg.Retry.Delay = 0
	settings, _, err = c.deployTarget(context.Background(), "crm")
	require.NoError(t, err)
	assert.Equal(t, deployer.NoRetryDelay, settings.Retry.Delay)
}
