package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipeconf/pipeconf/internal/backend"
	"github.com/pipeconf/pipeconf/internal/conf"
	"github.com/pipeconf/pipeconf/internal/dspconfig"
	"github.com/pipeconf/pipeconf/internal/errors"
	"github.com/pipeconf/pipeconf/internal/importer"
	"github.com/pipeconf/pipeconf/internal/validation"
)

// fakeBackend is an in-memory engine.
type fakeBackend struct {
	mu         sync.Mutex
	active     *dspconfig.Config
	files      map[string]*dspconfig.Config
	validation validation.Errors
	err        error
	applied    []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{active: dspconfig.DefaultConfig(), files: map[string]*dspconfig.Config{}}
}

func (f *fakeBackend) GetConfig(context.Context) (*dspconfig.Config, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active.Clone(), f.err
}

func (f *fakeBackend) SetConfig(_ context.Context, cfg *dspconfig.Config, filename string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.active = cfg.Clone()
	f.applied = append(f.applied, filename)
	return nil
}

func (f *fakeBackend) SaveConfigFile(_ context.Context, filename string, cfg *dspconfig.Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if filename == "" {
		return errors.ValidationError("filename is required")
	}
	f.files[filename] = cfg.Clone()
	return f.err
}

func (f *fakeBackend) ValidateConfig(context.Context, *dspconfig.Config) (validation.Errors, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validation, f.err
}

func (f *fakeBackend) StoredConfigs(context.Context) ([]backend.StoredConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []backend.StoredConfig
	for name := range f.files {
		out = append(out, backend.StoredConfig{Name: name})
	}
	return out, f.err
}

func (f *fakeBackend) GetConfigFile(_ context.Context, name string) (*dspconfig.Config, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.files[name]
	if !ok {
		return nil, &backend.StatusError{Method: http.MethodGet, Path: backend.PathGetConfigFile, StatusCode: http.StatusNotFound}
	}
	return cfg.Clone(), nil
}

func (f *fakeBackend) YAMLToJSON(_ context.Context, data []byte) (map[string]any, error) {
	return importer.ParseYAML(data)
}

func (f *fakeBackend) EQAPOToJSON(context.Context, []byte) (map[string]any, error) {
	return map[string]any{
		"filters": map[string]any{
			"eq1": map[string]any{"type": "Biquad", "parameters": map[string]any{"type": "Peaking", "freq": 1000.0, "q": 1.0, "gain": -3.0}},
		},
	}, nil
}

func testSettings() *conf.Settings {
	return &conf.Settings{
		Version: "test",
		Server:  conf.ServerSettings{MaxBodySize: "1M"},
		Session: conf.SessionSettings{TTL: time.Hour, MaxHistory: 50},
	}
}

func newTestController(t *testing.T, be Backend, opts ...Option) (*echo.Echo, *Controller) {
	t.Helper()
	e := echo.New()
	c, err := New(e, testSettings(), be, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Shutdown)
	return e, c
}

func doRequest(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// createSession starts a session holding cfg and returns its id.
func createSession(t *testing.T, e *echo.Echo, cfg *dspconfig.Config) string {
	t.Helper()
	body, err := json.Marshal(CreateSessionRequest{Config: cfg})
	require.NoError(t, err)
	rec := doRequest(t, e, http.MethodPost, "/api/v1/sessions", string(body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[SessionResponse](t, rec).ID
}

func testConfig() *dspconfig.Config {
	cfg := dspconfig.DefaultConfig()
	cfg.Filters["lowpass"] = dspconfig.DefaultFilter()
	cfg.Filters["gain"], _ = dspconfig.NewFilter("Gain", "")
	cfg.Mixers["stereo"] = dspconfig.DefaultMixer()
	cfg.Processors["comp"] = dspconfig.DefaultProcessor()
	cfg.Pipeline = dspconfig.Pipeline{
		dspconfig.MixerStep{Name: "stereo"},
		dspconfig.FilterStep{Channel: 0, Names: []string{"lowpass", "gain"}},
		dspconfig.ProcessorStep{Name: "comp"},
	}
	return cfg
}

func TestNewRequiresDependencies(t *testing.T) {
	t.Parallel()
	_, err := New(echo.New(), nil, newFakeBackend())
	require.Error(t, err)
	_, err = New(echo.New(), testSettings(), nil)
	require.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()
	e, _ := newTestController(t, newFakeBackend())

	rec := doRequest(t, e, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, "production", body["environment"])
	assert.NotContains(t, body, "database_status")
}

func TestCreateSession(t *testing.T) {
	t.Parallel()
	be := newFakeBackend()
	be.files["room.json"] = testConfig()
	e, _ := newTestController(t, be)

	tests := []struct {
		name        string
		body        string
		wantStatus  int
		wantFilters int
		wantFile    string
	}{
		{"default without body", "", http.StatusCreated, 0, ""},
		{"explicit default", `{"source":"default"}`, http.StatusCreated, 0, ""},
		{"engine", `{"source":"engine"}`, http.StatusCreated, 0, ""},
		{"stored file", `{"source":"file","file":"room.json"}`, http.StatusCreated, 2, "room.json"},
		{"missing file", `{"source":"file","file":"nope.json"}`, http.StatusNotFound, 0, ""},
		{"file without name", `{"source":"file"}`, http.StatusBadRequest, 0, ""},
		{"unknown source", `{"source":"somewhere"}`, http.StatusBadRequest, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, e, http.MethodPost, "/api/v1/sessions", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus != http.StatusCreated {
				resp := decode[ErrorResponse](t, rec)
				assert.Equal(t, tt.wantStatus, resp.Code)
				assert.Len(t, resp.CorrelationID, 8)
				return
			}
			resp := decode[SessionResponse](t, rec)
			assert.NotEmpty(t, resp.ID)
			assert.Len(t, resp.Config.Filters, tt.wantFilters)
			assert.Equal(t, tt.wantFile, resp.Filename)
			assert.False(t, resp.State.CanUndo)
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()
	e, c := newTestController(t, newFakeBackend())
	id := createSession(t, e, testConfig())
	assert.Equal(t, 1, c.Sessions.Count())

	rec := doRequest(t, e, http.MethodGet, "/api/v1/sessions/"+id+"/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[dspconfig.Config](t, rec).Filters, "lowpass")

	rec = doRequest(t, e, http.MethodPut, "/api/v1/sessions/"+id+"/config", `{"filters":{"only":{"type":"Gain","parameters":{"gain":1}}}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[ConfigResponse](t, rec)
	assert.Equal(t, []string{"only"}, resp.Config.FilterNames())
	assert.True(t, resp.State.CanUndo)

	rec = doRequest(t, e, http.MethodPut, "/api/v1/sessions/"+id+"/config", `{"filters":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, e, http.MethodDelete, "/api/v1/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = doRequest(t, e, http.MethodGet, "/api/v1/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = doRequest(t, e, http.MethodDelete, "/api/v1/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportConfig(t *testing.T) {
	t.Parallel()
	e, _ := newTestController(t, newFakeBackend())
	id := createSession(t, e, testConfig())

	rec := doRequest(t, e, http.MethodGet, "/api/v1/sessions/"+id+"/export?format=yaml", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get(echo.HeaderContentType))

	doc, err := importer.ParseYAML(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Contains(t, doc["filters"], "lowpass")

	rec = doRequest(t, e, http.MethodGet, "/api/v1/sessions/"+id+"/export?format=toml", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"collision", &dspconfig.NameCollisionError{Kind: dspconfig.KindFilter, Name: "x"}, http.StatusConflict},
		{"out of range", &dspconfig.OutOfRangeError{Message: "x"}, http.StatusUnprocessableEntity},
		{"validation", errors.ValidationError("x"), http.StatusBadRequest},
		{"not found", errors.Newf("x").Category(errors.CategoryNotFound).Build(), http.StatusNotFound},
		{"import lock", errors.New(importer.ErrLocked).Category(errors.CategoryImport).Build(), http.StatusConflict},
		{"network", errors.NetworkError(errors.NewStd("refused"), "http://engine", time.Second), http.StatusBadGateway},
		{"backend 404", &backend.StatusError{StatusCode: http.StatusNotFound}, http.StatusNotFound},
		{"backend 500", &backend.StatusError{StatusCode: http.StatusInternalServerError}, http.StatusBadGateway},
		{"database", errors.Newf("x").Category(errors.CategoryDatabase).Build(), http.StatusInternalServerError},
		{"plain", errors.NewStd("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
