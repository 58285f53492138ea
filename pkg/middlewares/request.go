package middlewares

import (
	"time"

	"transcoding_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// HeaderRequestID request id header
	HeaderRequestID = "X-Request-ID"
	// LocalsRequestID c.Locals 中的 request id
	LocalsRequestID = "requestid"
)

// RequestID 沒有帶 X-Request-ID 時產生一個 uuid
func RequestID() fiber.Handler {
	return requestid.New(requestid.Config{
		Header:     HeaderRequestID,
		Generator:  uuid.NewString,
		ContextKey: LocalsRequestID,
	})
}

// AccessLog 以 zap 記錄每個 request
func AccessLog() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			// 交給 fiber error handler 前先推算 status
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		}
		if id, ok := c.Locals(LocalsRequestID).(string); ok {
			fields = append(fields, zap.String("request_id", id))
		}
		if status >= fiber.StatusInternalServerError {
			logger.Log.Error("request", fields...)
		} else {
			logger.Log.Debug("request", fields...)
		}
		return err
	}
}
