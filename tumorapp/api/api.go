package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/harrison-roh/brain-tumor-classification/tumorapp/chat"
	"github.com/harrison-roh/brain-tumor-classification/tumorapp/constants"
	"github.com/harrison-roh/brain-tumor-classification/tumorapp/data"
	"github.com/harrison-roh/brain-tumor-classification/tumorapp/inference"
	"github.com/harrison-roh/brain-tumor-classification/tumorapp/metrics"
	"go.uber.org/zap"
)

const (
	sourceSample = "sample"
	sourceUpload = "upload"
)

var (
	errNoFile       = errors.New("No file provided")
	errFileTooLarge = errors.New("File too large")
)

// APIs api 핸들러
type APIs struct {
	I *inference.Inference
	M *data.Manager
	H *chat.Hub

	Metrics *metrics.Metrics
	Logger  *zap.Logger

	MaxUploadBytes int64
}

// SampleRequest 샘플 이미지 분류 요청
type SampleRequest struct {
	Category string `json:"category"`
	Filename string `json:"filename"`
}

// Index 메인 페이지
func (a *APIs) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"title":      "Brain Tumor Classification",
		"categories": a.I.Categories(),
	})
}

// Health 상태 확인
func (a *APIs) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

// ListSamples 갤러리 샘플 이미지 목록 반환
func (a *APIs) ListSamples(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"images": data.Samples(),
	})
}

// PredictSample 샘플 이미지 분류
func (a *APIs) PredictSample(c *gin.Context) {
	var req SampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err)
		return
	}

	if strings.ContainsAny(req.Filename, `/\`) || req.Filename == ".." {
		Error(c, http.StatusBadRequest, data.ErrInvalidFilename)
		return
	}

	imageURL := constants.SamplesURLPath + "/" + req.Filename

	res, err := a.I.PredictSample(req.Category, imageURL)
	if err != nil {
		if errors.Is(err, inference.ErrUnknownCategory) {
			Error(c, http.StatusBadRequest, err)
		} else {
			a.fail(c, err)
		}
		return
	}

	a.Metrics.Predictions.WithLabelValues(sourceSample, res.Prediction).Inc()
	c.JSON(http.StatusOK, res)
}

// Predict 업로드 이미지 저장 후 분류
func (a *APIs) Predict(c *gin.Context) {
	if a.MaxUploadBytes > 0 {
		if c.Request.ContentLength > a.MaxUploadBytes {
			a.reject(c, http.StatusRequestEntityTooLarge, "too_large", errFileTooLarge)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, a.MaxUploadBytes)
	}

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			a.reject(c, http.StatusRequestEntityTooLarge, "too_large", errFileTooLarge)
		case errors.Is(err, http.ErrMissingFile) && a.emptyFileField(c):
			a.reject(c, http.StatusBadRequest, "empty_filename", data.ErrEmptyFilename)
		default:
			a.reject(c, http.StatusBadRequest, "no_file", errNoFile)
		}
		return
	}

	upload, err := a.M.SaveUpload(header, c.SaveUploadedFile)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrEmptyFilename):
			a.reject(c, http.StatusBadRequest, "empty_filename", err)
		case errors.Is(err, data.ErrInvalidFileType):
			a.reject(c, http.StatusBadRequest, "invalid_type", err)
		case errors.Is(err, data.ErrInvalidFilename):
			a.reject(c, http.StatusBadRequest, "invalid_name", err)
		default:
			a.fail(c, err)
		}
		return
	}

	res, err := a.I.PredictUpload(upload.URL)
	if err != nil {
		a.fail(c, err)
		return
	}

	a.M.Record(upload, res.Prediction)
	a.Metrics.Predictions.WithLabelValues(sourceUpload, res.Prediction).Inc()
	c.JSON(http.StatusOK, res)
}

// 파일 이름 없이 "file" 필드만 전송된 경우
func (a *APIs) emptyFileField(c *gin.Context) bool {
	form := c.Request.MultipartForm
	return form != nil && len(form.Value["file"]) > 0
}

// ServeUpload 업로드 파일 반환
func (a *APIs) ServeUpload(c *gin.Context) {
	p, err := a.M.UploadPath(c.Param("filename"))
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			Error(c, http.StatusNotFound, err)
		} else {
			a.fail(c, err)
		}
		return
	}

	c.File(p)
}

// ListUploads 업로드 기록 반환
func (a *APIs) ListUploads(c *gin.Context) {
	if result, err := a.M.ListUploads(); err != nil {
		a.fail(c, err)
	} else {
		c.JSON(http.StatusOK, result)
	}
}

func (a *APIs) reject(c *gin.Context, status int, reason string, err error) {
	a.Metrics.UploadsRejected.WithLabelValues(reason).Inc()
	Error(c, status, err)
}

// fail 내부 에러는 로그로만 남기고 요청 ID만 응답
func (a *APIs) fail(c *gin.Context, err error) {
	id := c.GetString(requestIDKey)
	a.Logger.Error("request failed",
		zap.String("requestID", id),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))

	c.AbortWithStatusJSON(http.StatusInternalServerError, HTTPError{
		Error: http.StatusText(http.StatusInternalServerError),
		Code:  id,
	})
}

// HTTPError api 에러 메시지
type HTTPError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Error api 에러를 담은 json 응답 생성
func Error(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, HTTPError{
		Error: err.Error(),
	})
}
