package sandbox_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-formkit/internal/platform/joget"
	"github.com/goliatone/go-formkit/internal/sandbox"
	"github.com/goliatone/go-formkit/pkg/builder"
	"github.com/goliatone/go-formkit/pkg/deployer"
	"github.com/goliatone/go-formkit/pkg/schema"
)

func start(t *testing.T) (*sandbox.Server, *httptest.Server) {
	t.Helper()
	sb := sandbox.New(sandbox.Options{APIID: "API-1", APIKey: "secret"})
	srv := httptest.NewServer(sb.Handler())
	t.Cleanup(srv.Close)
	return sb, srv
}

func client(t *testing.T, baseURL, key string, slept *int) *joget.Deployer {
	t.Helper()
	d, err := joget.NewDeployer(deployer.Settings{
		BaseURL: baseURL + "/jw",
		APIKey:  key,
		Retry:   deployer.RetryPolicy{MaxAttempts: 3, Delay: time.Second},
		Sleeper: func(time.Duration) { *slept++ },
	})
	require.NoError(t, err)
	return d
}

func artifact(t *testing.T, id string) *builder.Artifact {
	t.Helper()
	a, err := joget.NewBuilder().BuildForm(schema.NewForm(id, "Form "+id, "t_"+id,
		schema.NewField("code", schema.FieldTypeText, schema.PrimaryKey()),
	))
	require.NoError(t, err)
	return a
}

var params = deployer.Params{AppID: "crm", APIID: "API-1", CreateCRUD: true}

func TestSandbox_DeployEndToEnd(t *testing.T) {
	sb, srv := start(t)
	var slept int
	d := client(t, srv.URL, "secret", &slept)

	sb.InjectFaults(http.StatusServiceUnavailable)
	res, err := d.DeployForm(context.Background(), artifact(t, "customer"), params)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, 1, slept)

	res, err = d.DeployForm(context.Background(), artifact(t, "customer"), params)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	stored := sb.Deployments()
	require.Len(t, stored, 1)
	assert.Equal(t, "crm", stored[0].AppID)
	assert.Equal(t, "t_customer", stored[0].TableName)
	assert.Equal(t, 2, stored[0].Revision)
	assert.True(t, stored[0].CreateCRUD)
	assert.Equal(t, joget.ClassForm, stored[0].Definition["className"])

	resp, err := http.Get(srv.URL + "/sandbox/forms/crm/customer")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var got sandbox.Deployment
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "Form customer", got.FormName)
}

func TestSandbox_RejectsBadCredentials(t *testing.T) {
	_, srv := start(t)
	var slept int
	d := client(t, srv.URL, "wrong", &slept)

	_, err := d.DeployForm(context.Background(), artifact(t, "customer"), params)
	assert.ErrorIs(t, err, deployer.ErrAuthentication)
	assert.Zero(t, slept)
}

func TestSandbox_ExhaustsOnPersistentOutage(t *testing.T) {
	sb, srv := start(t)
	var slept int
	d := client(t, srv.URL, "secret", &slept)
	sb.InjectFaults(502, 503, 504)

	res, err := d.DeployForm(context.Background(), artifact(t, "invoice"), params)
	assert.ErrorIs(t, err, deployer.ErrTransientExhausted)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 2, slept)
	assert.Empty(t, sb.Deployments())
}

func TestSandbox_RefererMustNameTheApp(t *testing.T) {
	_, srv := start(t)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/jw/api/formcreator/formCreator/addWithFiles", strings.NewReader(""))
	require.NoError(t, err)
	req.Header["api_id"] = []string{"API-1"}
	req.Header["api_key"] = []string{"secret"}
	req.Header.Set("Referer", srv.URL+"/jw/web/home")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "userview")
}

func TestSandbox_Metrics(t *testing.T) {
	sb, srv := start(t)
	var slept int
	d := client(t, srv.URL, "secret", &slept)
	sb.InjectFaults(503)
	_, err := d.DeployForm(context.Background(), artifact(t, "customer"), params)
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `formkit_sandbox_requests_total{status="201"} 1`)
	assert.Contains(t, string(body), `formkit_sandbox_requests_total{status="503"} 1`)
}
