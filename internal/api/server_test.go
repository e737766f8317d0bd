package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/genotype-insight-server/internal/domain"
	"github.com/genotype-insight-server/internal/events"
	"github.com/genotype-insight-server/internal/history"
	"github.com/genotype-insight-server/internal/registry"
	"github.com/genotype-insight-server/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubConfig struct {
	cfg *domain.Config
}

func (s *stubConfig) GetConfig() *domain.Config                 { return s.cfg }
func (s *stubConfig) GetDatabaseConfig() *domain.DatabaseConfig { return &s.cfg.Database }
func (s *stubConfig) GetServerConfig() *domain.ServerConfig     { return &s.cfg.Server }
func (s *stubConfig) Reload() error                             { return nil }
func (s *stubConfig) Validate() error                           { return nil }
func (s *stubConfig) GetDatabaseConnectionString() string       { return "" }
func (s *stubConfig) GetDatabaseURL() string                    { return "" }
func (s *stubConfig) GetRedisConnectionString() string          { return "" }
func (s *stubConfig) IsProduction() bool                        { return false }
func (s *stubConfig) IsDevelopment() bool                       { return true }

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishAnalysisCompleted(ctx context.Context, evt events.AnalysisCompleted) error {
	return m.Called(ctx, evt).Error(0)
}

func (m *mockPublisher) Close() error { return nil }

func testConfig() *domain.Config {
	return &domain.Config{
		Server:  domain.ServerConfig{AllowedOrigins: []string{"*"}},
		Logging: domain.LoggingConfig{Level: "info"},
		Upload:  domain.UploadConfig{MaxBytes: 1 << 20},
	}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestServer(t *testing.T, cfg *domain.Config, opts ...ServerOption) *Server {
	t.Helper()
	reg, err := registry.Default()
	require.NoError(t, err)

	logger := quietLogger()
	interpreter := service.NewCachedInterpreter(logger, service.NewInterpreter(logger, reg, nil), nil)
	return NewServer(&stubConfig{cfg: cfg}, logger, interpreter, opts...)
}

func newHistory(t *testing.T) history.Store {
	t.Helper()
	store, err := history.NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHandleAnalyze_Upload(t *testing.T) {
	s := newTestServer(t, testConfig(), WithHistory(newHistory(t)))

	body, contentType := multipartBody(t, "file", "genome.txt", "rs9939609 AA\nrsUNKNOWN XX\nrs9939609 AT\n")
	req := httptest.NewRequest(http.MethodPost, "/api/analyze-genome", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[AnalyzeResponse](t, w)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, domain.HOMOZYGOUS_RISK, resp.Results[0].Category)
	require.NotNil(t, resp.Results[0].HealthRisk)
	assert.Equal(t, domain.RISK_HIGH, resp.Results[0].HealthRisk.Level)
	assert.Equal(t, domain.HETEROZYGOUS, resp.Results[1].Category)
	assert.Equal(t, 1, resp.Stats.UnknownVariants)
	assert.NotEmpty(t, resp.AnalysisID)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+resp.AnalysisID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	stored := decode[history.AnalysisRecord](t, w)
	assert.Equal(t, history.SourceUpload, stored.Source)
	assert.Equal(t, "genome.txt", stored.Filename)
	assert.Len(t, stored.Reports, 2)
}

func TestHandleAnalyze_TextBody(t *testing.T) {
	s := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/genome/analyze", strings.NewReader("rs9939609 TT"))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[AnalyzeResponse](t, w)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, domain.NORMAL, resp.Results[0].Category)
	assert.Equal(t, 1.0, resp.Results[0].RiskFactor)
	assert.Empty(t, resp.AnalysisID, "history disabled")
}

func TestHandleAnalyze_NothingUsable(t *testing.T) {
	s := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/genome/analyze", strings.NewReader("garbage\n\nrsUNKNOWN AA"))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"results":[]`)
}

func TestHandleAnalyze_Rejections(t *testing.T) {
	wrongField, wrongFieldType := multipartBody(t, "genome", "genome.txt", "rs9939609 AA")

	tests := []struct {
		name        string
		maxBytes    int64
		body        io.Reader
		contentType string
		wantStatus  int
		wantBody    string
	}{
		{"missing file field", 1 << 20, wrongField, wrongFieldType, http.StatusBadRequest, `{"error":"No file uploaded"}`},
		{"empty body", 1 << 20, strings.NewReader(""), "text/plain", http.StatusBadRequest, `{"error":"No file uploaded"}`},
		{"too large", 64, strings.NewReader(strings.Repeat("rs9939609 AA\n", 10)), "text/plain", http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Upload.MaxBytes = tt.maxBytes
			s := newTestServer(t, cfg)

			req := httptest.NewRequest(http.MethodPost, "/api/analyze-genome", tt.body)
			req.Header.Set("Content-Type", tt.contentType)
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestHandleAnalyze_PublishesEvent(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("PublishAnalysisCompleted", mock.Anything, mock.MatchedBy(func(evt events.AnalysisCompleted) bool {
		return evt.Source == history.SourceText &&
			evt.Stats.Interpreted == 1 &&
			assert.ObjectsAreEqual([]string{"obesity"}, evt.HighRiskDomains) &&
			evt.CorrelationID == "corr-1"
	})).Return(errors.New("broker down")).Once()

	s := newTestServer(t, testConfig(), WithPublisher(pub))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/genome/analyze", strings.NewReader("rs9939609 AA"))
	req.Header.Set("X-Correlation-ID", "corr-1")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "publish failures do not fail the request")
	pub.AssertExpectations(t)
}

func TestVariantEndpoints(t *testing.T) {
	s := newTestServer(t, testConfig())

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/variants", nil))
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Variants []domain.VariantSummary `json:"variants"`
		Count    int                     `json:"count"`
	}](t, w)
	assert.Equal(t, len(list.Variants), list.Count)
	assert.NotEmpty(t, list.Variants)
	assert.Nil(t, list.Variants[0].Profiles)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/variants/rs9939609", nil))
	require.Equal(t, http.StatusOK, w.Code)
	variant := decode[domain.VariantSummary](t, w)
	assert.Equal(t, "FTO", variant.Gene)
	assert.Equal(t, "A", variant.RiskAllele)
	assert.Equal(t, "T", variant.NormalAllele)
	assert.Len(t, variant.Profiles, 3)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/variants/rs0", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")
}

func TestAnalysisEndpoints(t *testing.T) {
	store := newHistory(t)
	s := newTestServer(t, testConfig(), WithHistory(store))

	for _, raw := range []string{"rs9939609 AA", "rs9939609 AT", "rs9939609 TT"} {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/genome/analyze", strings.NewReader(raw)))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/analyses?limit=2", nil))
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[struct {
		Analyses []history.AnalysisRecord `json:"analyses"`
		Total    int64                    `json:"total"`
	}](t, w)
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Analyses, 2)
	assert.Equal(t, domain.NORMAL, page.Analyses[0].Reports[0].Category, "newest first")

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/analyses?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation error for field 'limit'")

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/analyses?limit=501", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "between 1 and 500")

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/analyses/export", nil))
	require.Equal(t, http.StatusOK, w.Code)
	export := decode[history.Export](t, w)
	assert.Equal(t, 3, export.Count)

	id := page.Analyses[0].ID
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/analyses/"+id, nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+id, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnalysisEndpoints_HistoryDisabled(t *testing.T) {
	s := newTestServer(t, testConfig())

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/analyses", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testConfig(), WithHistory(newHistory(t)))

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "ok", body["history"])
	assert.NotEmpty(t, body["reference"].(map[string]any)["fingerprint"])
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = domain.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 1}
	s := newTestServer(t, cfg)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestStream(t *testing.T) {
	s := newTestServer(t, testConfig(), WithHistory(newHistory(t)))
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/genome/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	frames := []struct {
		raw        string
		categories []domain.Category
	}{
		{"rs9939609 AA", []domain.Category{domain.HOMOZYGOUS_RISK}},
		{"rs9939609 TA\nnot a call\nrs9939609 TT", []domain.Category{domain.HETEROZYGOUS, domain.NORMAL}},
	}
	for _, f := range frames {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(f.raw)))

		var resp StreamResponse
		require.NoError(t, conn.ReadJSON(&resp))
		require.Len(t, resp.Results, len(f.categories))
		for i, c := range f.categories {
			assert.Equal(t, c, resp.Results[i].Category)
		}
		assert.NotEmpty(t, resp.AnalysisID)
	}

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
}
