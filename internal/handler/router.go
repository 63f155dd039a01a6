package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/permit-deadline-api/internal/middleware"
	"github.com/noah-isme/permit-deadline-api/internal/service"
	"github.com/noah-isme/permit-deadline-api/pkg/config"
	"github.com/noah-isme/permit-deadline-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/permit-deadline-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/permit-deadline-api/pkg/middleware/requestid"
)

// RouterDeps bundles what NewRouter wires together.
type RouterDeps struct {
	Config        *config.Config
	Logger        *zap.Logger
	Metrics       *service.MetricsService
	Datasets      *DatasetHandler
	Exports       *ExportHandler
	Observability *MetricsHandler
}

// NewRouter builds the gin engine with every route mounted under the API prefix.
func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics, "/metrics"))
	r.Use(middleware.ResponseMeta())

	r.GET("/health", deps.Observability.Health)
	r.GET("/ready", deps.Observability.Ready)
	r.GET("/metrics", deps.Observability.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	limited := middleware.RateLimit(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)

	api := r.Group(cfg.APIPrefix)
	datasets := api.Group("/datasets")
	{
		datasets.POST("", limited, deps.Datasets.Open)
		datasets.GET("/:handle", deps.Datasets.Describe)
		datasets.DELETE("/:handle", deps.Datasets.Close)

		datasets.GET("/:handle/records", deps.Datasets.ListRecords)
		datasets.GET("/:handle/records/:index", deps.Datasets.GetRecord)
		datasets.POST("/:handle/records", limited, deps.Datasets.AddRecord)
		datasets.PUT("/:handle/records/:index", limited, deps.Datasets.UpdateRecord)
		datasets.DELETE("/:handle/records/:index", limited, deps.Datasets.DeleteRecord)

		datasets.GET("/:handle/summary", deps.Datasets.Summary)
		datasets.GET("/:handle/calendar", deps.Datasets.Calendar)
		datasets.GET("/:handle/alerts", deps.Datasets.Alerts)

		datasets.POST("/:handle/export/processed", limited, deps.Exports.SaveProcessed)
		datasets.GET("/:handle/export/alerts", limited, deps.Exports.DownloadAlerts)
		datasets.POST("/:handle/exports", limited, deps.Exports.CreateJob)
	}
	api.GET("/exports/:id", deps.Exports.JobStatus)
	api.GET("/export/:token", deps.Exports.Download)

	return r
}
