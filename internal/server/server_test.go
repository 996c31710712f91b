package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/jonathan/campaign-studio/internal/blob"
	"github.com/jonathan/campaign-studio/internal/collection"
	"github.com/jonathan/campaign-studio/internal/config"
	"github.com/jonathan/campaign-studio/internal/examples"
	"github.com/jonathan/campaign-studio/internal/generation"
	"github.com/jonathan/campaign-studio/internal/imageprompt"
	"github.com/jonathan/campaign-studio/internal/jobs/jobstest"
	"github.com/jonathan/campaign-studio/internal/llm"
	"github.com/jonathan/campaign-studio/internal/server/ratelimit"
	"github.com/jonathan/campaign-studio/internal/videoanalysis"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBaseURL  = "http://studio.test"
	testUser     = "studio"
	testPassword = "correct horse"
	testSecret   = "test-secret-key-for-jwt-signing-minimum-32-bytes"
)

// fakeModel is an llm.Client that returns a fixed answer.
type fakeModel struct {
	answer string
	err    error
	media  []llm.Media
}

func (f *fakeModel) AnalyzeMedia(_ context.Context, _ string, media []llm.Media, _ llm.ModelTier) (string, error) {
	f.media = media
	return f.answer, f.err
}

func (f *fakeModel) DescribeImage(context.Context, string, []byte, string, llm.ModelTier) (string, error) {
	return f.answer, f.err
}

func (f *fakeModel) Close() error { return nil }

type fixture struct {
	server  *Server
	handler http.Handler
	blobs   *blob.Memory
	jobs    *jobstest.Client
	model   *fakeModel
	token   string
}

type fixtureOption func(*Deps)

func withoutProviders() fixtureOption {
	return func(d *Deps) {
		d.Generation = nil
		d.Prompts = nil
		d.Analyzer = nil
	}
}

func withRateLimit(cfg *ratelimit.Config) fixtureOption {
	return func(d *Deps) { d.RateLimit = cfg }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	pw := config.PasswordConfig{BcryptCost: 4}
	hash, err := pw.HashPassword(testPassword)
	require.NoError(t, err)

	mem := blob.NewMemory(testBaseURL)
	jobClient := jobstest.New("https://cdn.test/out.png")
	model := &fakeModel{answer: "a purple armchair in soft morning light"}
	logger := zerolog.Nop()

	deps := Deps{
		Blobs:      mem,
		Examples:   examples.NewService(mem, collection.New(mem), logger),
		Generation: generation.NewOrchestrator(jobClient, logger),
		Prompts:    imageprompt.NewService(mem, model, logger),
		Analyzer:   videoanalysis.NewService(model, logger),
		Auth: &config.AuthConfig{
			JWT:          config.JWTConfig{Secret: testSecret, ExpirationHours: 1},
			Password:     pw,
			Username:     testUser,
			PasswordHash: hash,
		},
		RateLimit: &ratelimit.Config{Enabled: false},
		Logger:    logger,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	srv, err := New(Config{Port: 0}, deps)
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	token, err := srv.jwtService.GenerateToken(testUser)
	require.NoError(t, err)

	return &fixture{server: srv, handler: srv.Handler(), blobs: mem, jobs: jobClient, model: model, token: token}
}

// do sends req through the full middleware chain.
func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

// authed sends req with the fixture's bearer token.
func (f *fixture) authed(req *http.Request) *httptest.ResponseRecorder {
	req.Header.Set("Authorization", "Bearer "+f.token)
	return f.do(req)
}

func jsonRequest(method, target string, body any) *http.Request {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// multipartRequest builds a form with text fields and, when data is not nil,
// an "image" file part.
func multipartRequest(t *testing.T, target string, fields map[string]string, fileName, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if data != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="`+fileName+`"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

type errorBody struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Config{}, Deps{})
	assert.Error(t, err)

	mem := blob.NewMemory(testBaseURL)
	_, err = New(Config{}, Deps{Blobs: mem, Examples: examples.NewService(mem, collection.New(mem), zerolog.Nop())})
	assert.Error(t, err, "auth config is required")
}

func TestHandleHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestLogin(t *testing.T) {
	f := newFixture(t)

	t.Run("valid credentials", func(t *testing.T) {
		w := f.do(jsonRequest(http.MethodPost, "/login", LoginRequest{Username: testUser, Password: testPassword}))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp LoginResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		claims, err := f.server.jwtService.ValidateToken(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, testUser, claims.Username)
	})

	t.Run("wrong password", func(t *testing.T) {
		w := f.do(jsonRequest(http.MethodPost, "/login", LoginRequest{Username: testUser, Password: "nope"}))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "unauthorized", decodeError(t, w).Error.Kind)
	})

	t.Run("wrong username", func(t *testing.T) {
		w := f.do(jsonRequest(http.MethodPost, "/login", LoginRequest{Username: "admin", Password: testPassword}))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		w := f.do(jsonRequest(http.MethodPost, "/login", map[string]string{"username": testUser}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decodeError(t, w).Error.Message, "Password")
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("{"))
		w := f.do(req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestStatus_Auth(t *testing.T) {
	f := newFixture(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w = f.do(req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.authed(httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","username":"studio"}`, w.Body.String())
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newFixture(t)
	routes := []struct{ method, path string }{
		{http.MethodPost, "/generate-image"},
		{http.MethodGet, "/image-status/req-1"},
		{http.MethodPost, "/generate-prompt-image"},
		{http.MethodPost, "/analyze-video"},
		{http.MethodGet, "/load-examples"},
		{http.MethodPost, "/create-example"},
		{http.MethodDelete, "/delete-example/abc"},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			w := f.do(httptest.NewRequest(rt.method, rt.path, nil))
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	w := f.do(httptest.NewRequest(http.MethodOptions, "/generate-image", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, withRateLimit(&ratelimit.Config{
		Enabled:       true,
		DefaultLimit:  1000,
		DefaultWindow: time.Minute,
		EndpointConfigs: []ratelimit.EndpointConfig{
			{Path: "/login", Method: http.MethodPost, Limit: 2, Window: time.Hour, Burst: 2},
		},
	}))

	for i := 0; i < 2; i++ {
		w := f.do(jsonRequest(http.MethodPost, "/login", LoginRequest{Username: testUser, Password: "nope"}))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := f.do(jsonRequest(http.MethodPost, "/login", LoginRequest{Username: testUser, Password: testPassword}))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "rate_limit_exceeded", body["error"])

	// Health checks are never limited.
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
	}
}

func TestRecoverer(t *testing.T) {
	f := newFixture(t)
	f.server.deps.Examples = nil

	w := f.authed(httptest.NewRequest(http.MethodGet, "/load-examples", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
