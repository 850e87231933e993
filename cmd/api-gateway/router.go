package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/campus-request-api/api/swagger"
	"github.com/noah-isme/campus-request-api/internal/bootstrap"
	"github.com/noah-isme/campus-request-api/internal/handler"
	"github.com/noah-isme/campus-request-api/internal/middleware"
	"github.com/noah-isme/campus-request-api/internal/models"
	"github.com/noah-isme/campus-request-api/pkg/config"
	"github.com/noah-isme/campus-request-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/campus-request-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campus-request-api/pkg/middleware/requestid"
)

func newRouter(app *bootstrap.App) *gin.Engine {
	cfg := app.Config

	deps := make(map[string]handler.Pinger)
	for name, ping := range app.Pingers() {
		deps[name] = handler.PingFunc(ping)
	}

	authHandler := handler.NewAuthHandler(app.Accounts, app.Sessions, app.Cookies, app.Logger)
	requestHandler := handler.NewRequestHandler(app.Requests, app.Validator)
	staffHandler := handler.NewStaffHandler(app.Requests, app.Exports, app.Validator)
	accountHandler := handler.NewAccountHandler(app.Accounts)
	metricsHandler := handler.NewMetricsHandler(app.Metrics, deps)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(app.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(app.Metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/activate", authHandler.Activate)
	auth.POST("/login", authHandler.Login)
	auth.POST("/forgot-password", authHandler.ForgotPassword)
	auth.POST("/logout", authHandler.Logout)

	secured := api.Group("")
	secured.Use(middleware.Session(app.Sessions, app.Cookies))
	secured.GET("/auth/me", authHandler.Me)

	student := secured.Group("/requests")
	student.Use(middleware.RequireRoles(models.RoleStudent))
	student.POST("", requestHandler.Submit)
	student.GET("", requestHandler.List)
	student.GET("/semesters", requestHandler.Semesters)
	student.GET("/courses", accountHandler.Courses)
	student.POST("/:id/cancel", middleware.Audit(app.Logger, "request.cancel"), requestHandler.Cancel)

	staff := secured.Group("/staff/requests")
	staff.Use(middleware.RequireTriage())
	staff.GET("", staffHandler.List)
	staff.GET("/random", staffHandler.Random)
	staff.GET("/stats", staffHandler.Stats)
	staff.GET("/export", staffHandler.Export)
	staff.GET("/:id", staffHandler.Get)
	staff.POST("/:id/process", middleware.Audit(app.Logger, "request.process"), staffHandler.Process)

	admin := secured.Group("/admin/accounts")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	admin.GET("", accountHandler.List)
	admin.POST("", middleware.Audit(app.Logger, "account.create"), accountHandler.Create)
	admin.POST("/activate", middleware.Audit(app.Logger, "account.activate"), accountHandler.Activate)
	admin.PUT("/:identity/courses", middleware.Audit(app.Logger, "account.courses"), accountHandler.SetCourses)

	return r
}
