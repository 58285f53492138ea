package router

import (
	"transcoding_service/internal/transcode/api/handlers"
	"transcoding_service/pkg/metrics"
	"transcoding_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

// RegisterRoutes 註冊上傳與狀態查詢路由
func RegisterRoutes(app *fiber.App, videoHandler *handlers.VideoHandler) {
	app.Use(middlewares.RequestID())
	app.Use(middlewares.AccessLog())

	app.Get("/", handlers.ConnectCheck)
	app.Post("/debug", handlers.DebugLogFlag)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	videoRoutes := app.Group("/videos")
	videoRoutes.Post("/", videoHandler.UploadVideo)
	videoRoutes.Post("/upload", videoHandler.UploadOriginal)
	videoRoutes.Get("/:videoId", videoHandler.GetVideoStatus)
}
