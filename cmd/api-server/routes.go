package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/church-news-api/internal/app"
	"github.com/noah-isme/church-news-api/internal/handler"
	internalmiddleware "github.com/noah-isme/church-news-api/internal/middleware"
	"github.com/noah-isme/church-news-api/internal/service"
	"github.com/noah-isme/church-news-api/pkg/cache"
	"github.com/noah-isme/church-news-api/pkg/config"
	"github.com/noah-isme/church-news-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/church-news-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/church-news-api/pkg/middleware/requestid"
)

var probePaths = []string{"/health", "/ready", "/metrics"}

func newRouter(a *app.App) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(a.Logger, probePaths...))
	r.Use(corsmiddleware.New(a.Config.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(a.Metrics, probePaths...))
	r.Use(internalmiddleware.WithResponseMeta())

	checks := map[string]handler.Pinger{
		"database": handler.PingFunc(a.DB.PingContext),
	}
	if a.Redis != nil {
		checks["redis"] = handler.PingFunc(cache.Pinger(a.Redis))
	}
	metricsHandler := handler.NewMetricsHandler(a.Metrics, checks, a.Runs.Len)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if a.Config.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	issueHandler := handler.NewIssueHandler(a.Issues)
	extractionHandler := handler.NewExtractionHandler(a.Extraction)
	articleHandler := handler.NewArticleHandler(a.Articles)
	timelineHandler := handler.NewTimelineHandler(a.Articles)
	dashboardHandler := handler.NewDashboardHandler(a.Dashboard)
	adminHandler := handler.NewAdminHandler(a.Issues, service.DefaultCatalogue)
	credentialHandler := handler.NewCredentialHandler(a.Credentials)

	api := r.Group(a.Config.APIPrefix)

	issues := api.Group("/issues")
	issues.GET("", issueHandler.List)
	issues.POST("", issueHandler.Upsert)
	issues.GET("/:id", issueHandler.Get)
	issues.GET("/:id/images", issueHandler.Images)
	issues.POST("/:id/extract", extractionHandler.Start)
	issues.GET("/:id/progress", extractionHandler.Progress)
	issues.POST("/:id/extraction/cancel", extractionHandler.Cancel)

	api.GET("/extraction/progress/:issueId", extractionHandler.ProgressByIssue)

	articles := api.Group("/articles")
	articles.GET("/search", articleHandler.Search)
	articles.GET("/stats/types", articleHandler.TypeStats)
	articles.GET("/stats/monthly", articleHandler.MonthlyStats)
	articles.GET("/issue/:issueId", articleHandler.ListByIssue)
	articles.GET("/:id", articleHandler.Get)

	api.GET("/timeline", timelineHandler.Timeline)
	api.GET("/events/stats", timelineHandler.EventStats)

	admin := api.Group("/admin")
	admin.GET("/dashboard", dashboardHandler.Admin)
	admin.POST("/issues/seed", adminHandler.SeedIssues)
	admin.POST("/reset-processing", adminHandler.ResetProcessing)

	keys := api.Group("/api-keys")
	keys.GET("", credentialHandler.List)
	keys.POST("", credentialHandler.Upsert)

	return r
}
