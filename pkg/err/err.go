package errprocess

import (
	"errors"
	"fmt"

	"transcoding_service/pkg/logger"

	"go.uber.org/zap"
)

// Set set err info
func Set(errMsg string) error {
	logger.Log.Error(errMsg)
	return errors.New(errMsg)
}

// Wrap 記錄錯誤並保留原始錯誤鏈, 讓呼叫端可用 errors.Is 判斷
func Wrap(err error, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	logger.Log.Error(msg, zap.Error(err))
	return fmt.Errorf("%s : %w", msg, err)
}
