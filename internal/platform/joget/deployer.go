package joget

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-formkit/pkg/builder"
	"github.com/goliatone/go-formkit/pkg/deployer"
)

// Deployment defaults.
const (
	DefaultCreatorPath     = "/api/formcreator/formCreator/addWithFiles"
	DefaultRefererTemplate = "{root}/jw/web/userview/{appId}/v/_/"
	DefaultAppVersion      = "1"
	DefaultTimeout         = 30 * time.Second

	// Multipart field carrying the form definition.
	DefinitionField = "form_definition_json"

	responseLimit = 1 << 20
)

// Deployer sends form definitions to the form creator plugin.
type Deployer struct {
	endpoint string
	root     string
	apiKey   string
	referer  string
	client   *http.Client
	runner   deployer.Runner
	logger   *zap.Logger
	newRunID func() string
}

// NewDeployer validates settings and returns a deployer with a private HTTP
// client.
func NewDeployer(s deployer.Settings) (*Deployer, error) {
	base := strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	if base == "" {
		return nil, &deployer.ConfigError{Field: "base url", Reason: "is required"}
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, &deployer.ConfigError{Field: "base url", Reason: fmt.Sprintf("%q is not an absolute URL", s.BaseURL)}
	}
	if strings.TrimSpace(s.APIKey) == "" {
		return nil, &deployer.ConfigError{Field: "api key", Reason: "is required"}
	}

	creator := s.CreatorPath
	if creator == "" {
		creator = DefaultCreatorPath
	}
	referer := s.RefererTemplate
	if referer == "" {
		referer = DefaultRefererTemplate
	}
	client := s.HTTPClient
	if client == nil {
		timeout := s.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := s.LoggerOrNop().Named("joget")

	return &Deployer{
		endpoint: base + "/" + strings.TrimLeft(creator, "/"),
		root:     parsed.Scheme + "://" + parsed.Host,
		apiKey:   s.APIKey,
		referer:  referer,
		client:   client,
		runner: deployer.Runner{
			Platform: Platform,
			Policy:   s.Retry,
			Sleep:    s.Sleeper,
			Logger:   logger,
			Metrics:  s.Metrics,
		},
		logger:   logger,
		newRunID: func() string { return uuid.NewString() },
	}, nil
}

// NewDeployerFactory adapts NewDeployer to the deployer registry.
func NewDeployerFactory() deployer.Factory {
	return func(s deployer.Settings) (deployer.Deployer, error) {
		return NewDeployer(s)
	}
}

func (d *Deployer) Platform() string { return Platform }

// Endpoint is the URL form definitions are posted to.
func (d *Deployer) Endpoint() string { return d.endpoint }

// Referer renders the Referer header for appID. The form creator resolves
// the target app from this header rather than from the posted fields.
func (d *Deployer) Referer(appID string) string {
	return strings.NewReplacer("{root}", d.root, "{appId}", appID).Replace(d.referer)
}

// DeployForm posts one artifact, retrying transient failures.
func (d *Deployer) DeployForm(ctx context.Context, artifact *builder.Artifact, params deployer.Params) (*deployer.Result, error) {
	formID, formName, table, err := deployer.Prepare(artifact, params)
	if err != nil {
		return nil, err
	}
	definition, err := artifact.JSON()
	if err != nil {
		return nil, &deployer.ConfigError{FormID: formID, Field: "artifact", Reason: err.Error()}
	}

	version := params.AppVersion
	if version == "" {
		version = DefaultAppVersion
	}
	fields := [][2]string{
		{"target_app_id", params.AppID},
		{"target_app_version", version},
		{"form_id", formID},
		{"form_name", formName},
		{"table_name", table},
		{"create_api_endpoint", strconv.FormatBool(params.CreateAPIEndpoint)},
		{"api_name", params.APIName},
		{"create_crud", strconv.FormatBool(params.CreateCRUD)},
	}

	send := func(ctx context.Context, _ int) (*deployer.Response, error) {
		body, contentType, err := multipartBody(fields, formID+".json", definition)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json")
		// The server reads these keys verbatim, so they bypass canonicalization.
		req.Header["api_id"] = []string{params.APIID}
		req.Header["api_key"] = []string{d.apiKey}
		req.Header.Set("Referer", d.Referer(params.AppID))

		resp, err := d.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		payload, err := io.ReadAll(io.LimitReader(resp.Body, responseLimit))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		return &deployer.Response{StatusCode: resp.StatusCode, Body: payload}, nil
	}

	return d.runner.Run(ctx, formID, d.newRunID(), send)
}

// PopulateData is not supported by the form creator API.
func (d *Deployer) PopulateData(_ context.Context, formID string, _ []map[string]any, _ deployer.Params) error {
	return fmt.Errorf("joget: populate data for form %s: %w", formID, deployer.ErrNotImplemented)
}

func multipartBody(fields [][2]string, fileName string, definition []byte) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	part, err := w.CreateFormFile(DefinitionField, fileName)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(definition); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}
