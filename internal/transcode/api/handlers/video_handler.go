package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"

	"transcoding_service/internal/transcode/app"
	"transcoding_service/internal/transcode/domain"
	"transcoding_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// FormFieldVideo multipart 欄位名稱
const FormFieldVideo = "video"

// VideoHandler 上傳與狀態查詢
type VideoHandler struct {
	usecase app.TranscodeUseCase
}

// NewVideoHandler create video handler
func NewVideoHandler(usecase app.TranscodeUseCase) *VideoHandler {
	return &VideoHandler{usecase: usecase}
}

// openVideo 取出 multipart 的 video 欄位
func openVideo(c *fiber.Ctx) (domain.UploadVideoReq, multipart.File, error) {
	fileHeader, err := c.FormFile(FormFieldVideo)
	if err != nil {
		return domain.UploadVideoReq{}, nil, err
	}
	file, err := fileHeader.Open()
	if err != nil {
		return domain.UploadVideoReq{}, nil, err
	}
	return domain.UploadVideoReq{
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get(fiber.HeaderContentType),
		Size:        fileHeader.Size,
		File:        file,
	}, file, nil
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrVideoNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// UploadVideo 上傳並建立轉碼工作
func (h *VideoHandler) UploadVideo(c *fiber.Ctx) error {
	req, file, err := openVideo(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Video file is required"})
	}
	defer file.Close()

	res, err := h.usecase.UploadVideo(c.UserContext(), req)
	if err != nil {
		logger.Log.Error("upload video failed", zap.String("file", req.FileName), zap.Error(err))
		return c.Status(errorStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"message": res.Message,
		"data":    res,
	})
}

// UploadOriginal 只儲存原始檔, 依 upload result 類型回傳 {url, key} 或 {name}
func (h *VideoHandler) UploadOriginal(c *fiber.Ctx) error {
	req, file, err := openVideo(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Video file is required"})
	}
	defer file.Close()

	res, err := h.usecase.StoreOriginal(c.UserContext(), req)
	if err != nil {
		logger.Log.Error("store original failed", zap.String("file", req.FileName), zap.Error(err))
		return c.Status(errorStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}

	var fileRes fiber.Map
	switch res.Kind {
	case domain.UploadLocal:
		fileRes = fiber.Map{"name": res.Name}
	default:
		fileRes = fiber.Map{"url": res.URL, "key": res.Key}
	}
	return c.JSON(fiber.Map{
		"message": "Video uploaded successfully",
		"file":    fileRes,
	})
}

// GetVideoStatus 查詢轉碼狀態
func (h *VideoHandler) GetVideoStatus(c *fiber.Ctx) error {
	videoID := c.Params("videoId")
	res, err := h.usecase.GetVideoStatus(c.UserContext(), videoID)
	if err != nil {
		status := errorStatus(err)
		if status == http.StatusNotFound {
			return c.Status(status).JSON(fiber.Map{"error": "Video not found"})
		}
		logger.Log.Error("get video status failed", zap.String("video_id", videoID), zap.Error(err))
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{
		"message": "Video status retrieved successfully",
		"data":    res,
	})
}
