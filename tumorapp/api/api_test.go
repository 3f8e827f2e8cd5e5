package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/harrison-roh/brain-tumor-classification/tumorapp/chat"
	"github.com/harrison-roh/brain-tumor-classification/tumorapp/constants"
	"github.com/harrison-roh/brain-tumor-classification/tumorapp/data"
	"github.com/harrison-roh/brain-tumor-classification/tumorapp/inference"
	"github.com/harrison-roh/brain-tumor-classification/tumorapp/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type fixture struct {
	*APIs
	router     *gin.Engine
	cfg        RouterConfig
	uploadsDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	uploadsDir := filepath.Join(dir, "uploads")
	staticDir := filepath.Join(dir, "static")
	require.NoError(t, os.MkdirAll(filepath.Join(staticDir, constants.SamplesSubDir), os.ModePerm))

	m := metrics.New()

	i, err := inference.New(inference.Config{})
	require.NoError(t, err)

	dm, err := data.New(data.Config{
		UploadsDir: uploadsDir,
		DriverName: "sqlite",
		ConnInfo:   filepath.Join(dir, "ledger.db"),
		TableName:  constants.DefaultDBTable,
	})
	require.NoError(t, err)
	t.Cleanup(dm.Destroy)

	h, err := chat.New(chat.Config{Metrics: m, OriginPatterns: []string{"*"}})
	require.NoError(t, err)

	a := &APIs{
		I:              i,
		M:              dm,
		H:              h,
		Metrics:        m,
		Logger:         zap.NewNop(),
		MaxUploadBytes: constants.DefaultMaxUploadBytes,
	}
	cfg := RouterConfig{StaticDir: staticDir, AllowedOrigins: []string{"*"}}

	return &fixture{
		APIs:       a,
		router:     a.NewRouter(cfg),
		cfg:        cfg,
		uploadsDir: uploadsDir,
	}
}

func (fx *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)
	return w
}

func multipartRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if filename != "" {
		part, err := w.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, w.WriteField(field, string(content)))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/predict", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestListSamples(t *testing.T) {
	fx := newFixture(t)

	w := fx.do(httptest.NewRequest(http.MethodGet, "/sample-images", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Images []data.SampleImage `json:"images"`
	}
	decode(t, w, &body)
	require.Len(t, body.Images, 20)
	for _, image := range body.Images {
		assert.NotEmpty(t, image.Category)
		assert.NotEmpty(t, image.Filename)
		assert.NotEmpty(t, image.Path)
	}
}

func TestPredictSample(t *testing.T) {
	fx := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/predict-sample",
		strings.NewReader(`{"category": "glioma", "filename": "glioma_001.jpg"}`))
	req.Header.Set("Content-Type", "application/json")
	w := fx.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	var res inference.Result
	decode(t, w, &res)
	assert.Equal(t, "glioma", res.Prediction)
	assert.Equal(t, 95.7, res.ConfidenceScores["glioma"])

	sum := 0.0
	for category, score := range res.ConfidenceScores {
		if category != "glioma" {
			assert.InDelta(t, (100-95.7)/3, score, 1e-9)
		}
		sum += score
	}
	assert.InDelta(t, 100.0, sum, 1e-9)
	assert.Equal(t, "/static/images/samples/glioma_001.jpg", res.UploadedImageURL)
	require.Len(t, res.PreprocessingSteps, 4)

	assert.Equal(t, 1.0, testutil.ToFloat64(fx.Metrics.Predictions.WithLabelValues("sample", "glioma")))
}

func TestPredictSampleDefaultCategory(t *testing.T) {
	fx := newFixture(t)

	w := fx.do(httptest.NewRequest(http.MethodPost, "/predict-sample", strings.NewReader(`{"filename": "x.jpg"}`)))
	require.Equal(t, http.StatusOK, w.Code)

	var res inference.Result
	decode(t, w, &res)
	assert.Equal(t, constants.CategoryNoTumor, res.Prediction)
}

func TestPredictSampleBadRequest(t *testing.T) {
	fx := newFixture(t)

	for name, body := range map[string]string{
		"unknown category": `{"category": "astrocytoma", "filename": "a.jpg"}`,
		"malformed json":   `{"category": `,
		"empty body":       ``,
		"path in filename": `{"category": "glioma", "filename": "../../secret.jpg"}`,
	} {
		w := fx.do(httptest.NewRequest(http.MethodPost, "/predict-sample", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, w.Code, name)

		var e HTTPError
		decode(t, w, &e)
		assert.NotEmpty(t, e.Error, name)
	}
}

func TestPredictUpload(t *testing.T) {
	fx := newFixture(t)
	content := []byte("not really an image")

	w := fx.do(multipartRequest(t, "file", "scan.png", content))
	require.Equal(t, http.StatusOK, w.Code)

	var res inference.Result
	decode(t, w, &res)
	assert.Equal(t, constants.CategoryMeningioma, res.Prediction)
	assert.Equal(t, map[string]float64{
		"glioma":     25.0,
		"meningioma": 30.0,
		"pituitary":  20.0,
		"no_tumor":   25.0,
	}, res.ConfidenceScores)
	assert.Equal(t, "/uploads/scan.png", res.UploadedImageURL)
	for _, step := range res.PreprocessingSteps {
		assert.Equal(t, "/uploads/scan.png", step.ImageURL)
	}

	// 저장된 파일 조회
	w = fx.do(httptest.NewRequest(http.MethodGet, "/uploads/scan.png", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, content, w.Body.Bytes())

	// 업로드 기록
	w = fx.do(httptest.NewRequest(http.MethodGet, "/uploads", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Infos  map[string]int `json:"infos"`
		Images []struct {
			Filename   string `json:"filename"`
			Prediction string `json:"prediction"`
		} `json:"images"`
	}
	decode(t, w, &list)
	assert.Equal(t, 1, list.Infos["total"])
	require.Len(t, list.Images, 1)
	assert.Equal(t, "scan.png", list.Images[0].Filename)
	assert.Equal(t, constants.CategoryMeningioma, list.Images[0].Prediction)
}

func TestPredictUploadSanitizesName(t *testing.T) {
	fx := newFixture(t)

	w := fx.do(multipartRequest(t, "file", "my brain (1).JPG", []byte("x")))
	require.Equal(t, http.StatusOK, w.Code)

	var res inference.Result
	decode(t, w, &res)
	assert.Equal(t, "/uploads/my_brain_1.JPG", res.UploadedImageURL)

	_, err := os.Stat(filepath.Join(fx.uploadsDir, "my_brain_1.JPG"))
	assert.NoError(t, err)

	w = fx.do(multipartRequest(t, "file", "résumé.png", []byte("x")))
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &res)
	assert.Equal(t, "/uploads/resume.png", res.UploadedImageURL)
}

func TestPredictUploadInvalidType(t *testing.T) {
	fx := newFixture(t)

	w := fx.do(multipartRequest(t, "file", "notes.txt", []byte("hello")))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var e HTTPError
	decode(t, w, &e)
	assert.Equal(t, "Invalid file type", e.Error)

	entries, err := os.ReadDir(fx.uploadsDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.Metrics.UploadsRejected.WithLabelValues("invalid_type")))
}

func TestPredictUploadNoFile(t *testing.T) {
	fx := newFixture(t)

	w := fx.do(multipartRequest(t, "image", "scan.png", []byte("x")))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var e HTTPError
	decode(t, w, &e)
	assert.Equal(t, "No file provided", e.Error)

	w = fx.do(httptest.NewRequest(http.MethodPost, "/predict", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPredictUploadEmptyFilename(t *testing.T) {
	fx := newFixture(t)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename=""`)
	h.Set("Content-Type", "application/octet-stream")
	_, err := w.CreatePart(h)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/predict", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())

	res := fx.do(req)
	require.Equal(t, http.StatusBadRequest, res.Code)
	assert.JSONEq(t, `{"error":"No file selected"}`, res.Body.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.Metrics.UploadsRejected.WithLabelValues("empty_filename")))

	entries, err := os.ReadDir(fx.uploadsDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPredictUploadTooLarge(t *testing.T) {
	fx := newFixture(t)
	fx.MaxUploadBytes = 64

	w := fx.do(multipartRequest(t, "file", "scan.png", bytes.Repeat([]byte("x"), 1024)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	entries, err := os.ReadDir(fx.uploadsDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPredictUploadInternalErrorIsOpaque(t *testing.T) {
	fx := newFixture(t)

	// 업로드 디렉토리를 파일로 바꿔 저장 실패 유도
	require.NoError(t, os.RemoveAll(fx.uploadsDir))
	require.NoError(t, os.WriteFile(fx.uploadsDir, []byte("not a dir"), 0644))

	w := fx.do(multipartRequest(t, "file", "scan.png", []byte("x")))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var e HTTPError
	decode(t, w, &e)
	assert.Equal(t, "Internal Server Error", e.Error)
	assert.Equal(t, w.Header().Get(requestIDHeader), e.Code)
	assert.NotContains(t, w.Body.String(), "not a directory")
	assert.NotContains(t, w.Body.String(), fx.uploadsDir)
}

func TestServeUploadNotFound(t *testing.T) {
	fx := newFixture(t)

	for _, p := range []string{"/uploads/missing.png", "/uploads/..%2Fledger.db"} {
		w := fx.do(httptest.NewRequest(http.MethodGet, p, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, p)
	}
}

func TestIndexAndHealth(t *testing.T) {
	fx := newFixture(t)

	w := fx.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Brain Tumor Classification")
	assert.Contains(t, w.Body.String(), `data-category="pituitary"`)

	w = fx.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "healthy"}`, w.Body.String())

	w = fx.do(httptest.NewRequest(http.MethodGet, "/assets/script.js", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStaticSamples(t *testing.T) {
	fx := newFixture(t)
	sample := filepath.Join(fx.cfg.StaticDir, constants.SamplesSubDir, "glioma_001.jpg")
	require.NoError(t, os.WriteFile(sample, []byte("jpeg bytes"), 0644))

	w := fx.do(httptest.NewRequest(http.MethodGet, "/static/images/samples/glioma_001.jpg", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jpeg bytes", w.Body.String())
}

func TestRequestID(t *testing.T) {
	fx := newFixture(t)

	w := fx.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	_, err := uuid.Parse(w.Header().Get(requestIDHeader))
	assert.NoError(t, err)

	id := uuid.New().String()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, id)
	w = fx.do(req)
	assert.Equal(t, id, w.Header().Get(requestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "<script>")
	w = fx.do(req)
	assert.NotEqual(t, "<script>", w.Header().Get(requestIDHeader))
}

func TestRecovery(t *testing.T) {
	fx := newFixture(t)
	fx.router.GET("/panic", func(c *gin.Context) {
		panic("secret detail")
	})

	w := fx.do(httptest.NewRequest(http.MethodGet, "/panic", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "secret detail")

	var e HTTPError
	decode(t, w, &e)
	assert.NotEmpty(t, e.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	fx := newFixture(t)

	w := fx.do(multipartRequest(t, "file", "scan.bmp", []byte("x")))
	require.Equal(t, http.StatusOK, w.Code)

	w = fx.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `tumorapp_predictions_total{category="meningioma",source="upload"} 1`)
	assert.Contains(t, w.Body.String(), `route="/predict"`)
}

func TestCORS(t *testing.T) {
	fx := newFixture(t)
	h := fx.Handler(fx.cfg)

	req := httptest.NewRequest(http.MethodOptions, "/predict", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestChat(t *testing.T) {
	fx := newFixture(t)
	server := httptest.NewServer(fx.Handler(fx.cfg))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(server.URL, "http")+"/chat", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	var ev chat.Event
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Equal(t, constants.WelcomeMessage, ev.Data.Message)

	require.NoError(t, wsjson.Write(ctx, conn, chat.Event{
		Event: constants.EventMessage,
		Data:  chat.Payload{Message: "hello"},
	}))
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Equal(t, constants.EventResponse, ev.Event)
	assert.Contains(t, constants.ChatReplies, ev.Data.Message)
}

func TestHTTPErrorShape(t *testing.T) {
	b, err := json.Marshal(HTTPError{Error: "Invalid file type"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"error": "Invalid file type"}`, string(b))
}
