package http

import (
	"github.com/gin-gonic/gin"

	"pdfqa/internal/bootstrap"
	"pdfqa/internal/transport/http/handler"
	"pdfqa/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	carrier := middleware.NewSessionCarrier(app.Config.Session)
	router.Use(middleware.CORS(carrier.HeaderName()))

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	services := app.Services
	documentHandler := handler.NewDocumentHandler(
		services.Documents,
		app.Config.Upload.MaxFiles,
		app.Config.MaxUploadBytes(),
		app.Logger,
	)
	askHandler := handler.NewAskHandler(services.Answers, services.Conversation, app.Logger)
	sessionHandler := handler.NewSessionHandler(services.Sessions, carrier, app.Logger)

	api := router.Group("/")
	api.Use(middleware.Session(carrier, services.Sessions))
	api.POST("/upload", documentHandler.Upload)
	api.DELETE("/delete", documentHandler.Delete)
	api.GET("/documents", documentHandler.List)
	api.POST("/ask", askHandler.Ask)
	api.GET("/history", askHandler.History)
	api.POST("/reset-session", sessionHandler.Reset)

	return router
}
