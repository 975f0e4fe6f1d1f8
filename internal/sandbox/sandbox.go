// Package sandbox emulates the remote form creator endpoint so deployments
// can be rehearsed locally. It enforces the same headers and Referer
// convention as the real server, stores what it receives and can be told to
// fail the next requests.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/goliatone/go-formkit/internal/logging"
)

const (
	defaultCreatorPath = "/jw/api/formcreator/formCreator/addWithFiles"
	definitionField    = "form_definition_json"
	formClassName      = "org.joget.apps.form.model.Form"
	maxUpload          = 8 << 20
)

var refererApp = regexp.MustCompile(`/web/userview/([^/]+)/`)

// Options configure a sandbox server.
type Options struct {
	APIID  string
	APIKey string
	// CreatorPath is the route the deployer posts to, including any base
	// path such as /jw.
	CreatorPath string
	Logger      *zap.Logger
}

// Deployment is a stored form definition.
type Deployment struct {
	ID         string         `json:"id"`
	AppID      string         `json:"app_id"`
	AppVersion string         `json:"app_version"`
	FormID     string         `json:"form_id"`
	FormName   string         `json:"form_name"`
	TableName  string         `json:"table_name"`
	CreateCRUD bool           `json:"create_crud"`
	Definition map[string]any `json:"definition"`
	ReceivedAt time.Time      `json:"received_at"`
	Revision   int            `json:"revision"`
}

// Server is the sandbox HTTP server.
type Server struct {
	opts     Options
	logger   *zap.Logger
	router   chi.Router
	registry *prometheus.Registry
	requests *prometheus.CounterVec

	mu     sync.Mutex
	forms  map[string]*Deployment
	faults []int
}

// New constructs a sandbox with its routes registered.
func New(opts Options) *Server {
	if opts.CreatorPath == "" {
		opts.CreatorPath = defaultCreatorPath
	}
	logger := logging.OrNop(opts.Logger)

	s := &Server{
		opts:     opts,
		logger:   logger.Named("sandbox"),
		router:   chi.NewRouter(),
		registry: prometheus.NewRegistry(),
		forms:    make(map[string]*Deployment),
	}
	s.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "formkit",
		Subsystem: "sandbox",
		Name:      "requests_total",
		Help:      "Form creator requests by response status.",
	}, []string{"status"})
	s.registry.MustRegister(s.requests)

	s.router.Use(middleware.Recoverer)
	s.router.Post(opts.CreatorPath, s.handleCreate)
	s.router.Get("/sandbox/forms", s.handleList)
	s.router.Get("/sandbox/forms/{appId}/{formId}", s.handleGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Registry exposes the sandbox metrics registry.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// InjectFaults makes the next len(statuses) create requests answer with the
// given statuses, in order, before any other check runs.
func (s *Server) InjectFaults(statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, statuses...)
}

// Deployments returns stored deployments ordered by app and form id.
func (s *Server) Deployments() []Deployment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Deployment, 0, len(s.forms))
	for _, d := range s.forms {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AppID == out[j].AppID {
			return out[i].FormID < out[j].FormID
		}
		return out[i].AppID < out[j].AppID
	})
	return out
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("sandbox listening", zap.String("addr", addr), zap.String("creator_path", s.opts.CreatorPath))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) nextFault() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.faults) == 0 {
		return 0, false
	}
	status := s.faults[0]
	s.faults = s.faults[1:]
	return status, true
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if status, ok := s.nextFault(); ok {
		s.fail(w, status, fmt.Errorf("injected fault"))
		return
	}

	if r.Header.Get("api_id") != s.opts.APIID || r.Header.Get("api_key") != s.opts.APIKey {
		s.fail(w, http.StatusUnauthorized, fmt.Errorf("invalid api credentials"))
		return
	}

	appID, err := appFromReferer(r.Header.Get("Referer"))
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}

	if err := r.ParseMultipartForm(maxUpload); err != nil {
		s.fail(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}
	for _, field := range []string{"target_app_id", "form_id", "table_name"} {
		if r.FormValue(field) == "" {
			s.fail(w, http.StatusBadRequest, fmt.Errorf("%s is required", field))
			return
		}
	}
	if target := r.FormValue("target_app_id"); target != appID {
		s.fail(w, http.StatusBadRequest, fmt.Errorf("target_app_id %q does not match referer app %q", target, appID))
		return
	}

	definition, err := readDefinition(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	formID := r.FormValue("form_id")
	props, _ := definition["properties"].(map[string]any)
	if definition["className"] != formClassName || props == nil || props["id"] != formID {
		s.fail(w, http.StatusBadRequest, fmt.Errorf("definition is not a form with id %q", formID))
		return
	}

	s.mu.Lock()
	key := appID + "/" + formID
	existing, updated := s.forms[key]
	d := &Deployment{
		ID:         uuid.NewString(),
		AppID:      appID,
		AppVersion: r.FormValue("target_app_version"),
		FormID:     formID,
		FormName:   r.FormValue("form_name"),
		TableName:  r.FormValue("table_name"),
		CreateCRUD: r.FormValue("create_crud") == "true",
		Definition: definition,
		ReceivedAt: time.Now().UTC(),
		Revision:   1,
	}
	if updated {
		d.ID = existing.ID
		d.Revision = existing.Revision + 1
	}
	s.forms[key] = d
	s.mu.Unlock()

	status := http.StatusCreated
	if updated {
		status = http.StatusOK
	}
	s.requests.WithLabelValues(fmt.Sprint(status)).Inc()
	s.logger.Info("form received",
		zap.String("app", appID),
		zap.String("form", formID),
		zap.Int("revision", d.Revision),
	)
	writeJSON(w, status, map[string]any{
		"id":       d.ID,
		"formId":   formID,
		"appId":    appID,
		"revision": d.Revision,
	})
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Deployments())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "appId") + "/" + chi.URLParam(r, "formId")
	s.mu.Lock()
	d, ok := s.forms[key]
	var out Deployment
	if ok {
		out = *d
	}
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "form not found"})
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) fail(w http.ResponseWriter, status int, err error) {
	s.requests.WithLabelValues(fmt.Sprint(status)).Inc()
	s.logger.Warn("request rejected", zap.Int("status", status), zap.Error(err))
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func appFromReferer(referer string) (string, error) {
	if referer == "" {
		return "", fmt.Errorf("referer header is required")
	}
	u, err := url.Parse(referer)
	if err != nil {
		return "", fmt.Errorf("referer %q: %w", referer, err)
	}
	m := refererApp.FindStringSubmatch(u.Path)
	if m == nil {
		return "", fmt.Errorf("referer %q does not name a userview app", referer)
	}
	return m[1], nil
}

func readDefinition(r *http.Request) (map[string]any, error) {
	file, _, err := r.FormFile(definitionField)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", definitionField, err)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", definitionField, err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", definitionField, err)
	}
	return out, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
