package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/harrison-roh/brain-tumor-classification/tumorapp/constants"
	"github.com/harrison-roh/brain-tumor-classification/tumorapp/web"
	"github.com/rs/cors"
)

// RouterConfig 라우터 설정정보
type RouterConfig struct {
	StaticDir      string
	AllowedOrigins []string
}

// NewRouter 모든 경로가 등록된 gin.Engine 생성
func (a *APIs) NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = constants.DefaultMultipartMemory

	r.Use(requestID())
	r.Use(a.recovery())
	r.Use(a.accessLog())
	r.Use(a.observe())

	r.SetHTMLTemplate(web.Template())

	r.GET("/", a.Index)
	r.GET("/health", a.Health)
	r.GET("/metrics", gin.WrapH(a.Metrics.Handler()))
	r.GET("/chat", gin.WrapH(a.H))

	r.GET("/sample-images", a.ListSamples)
	r.POST("/predict-sample", a.PredictSample)
	r.POST("/predict", a.Predict)

	uploadsGroup := r.Group(constants.UploadsURLPath)
	{
		uploadsGroup.GET("", a.ListUploads)
		uploadsGroup.GET(":filename", a.ServeUpload)
	}

	r.StaticFS("/assets", web.Assets())
	if cfg.StaticDir != "" {
		r.Static("/static", cfg.StaticDir)
	}

	return r
}

// Handler CORS가 적용된 http.Handler 반환
func (a *APIs) Handler(cfg RouterConfig) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})

	return c.Handler(a.NewRouter(cfg))
}
