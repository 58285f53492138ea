package domain

import (
	"errors"
	"fmt"
)

// 階段錯誤, 以 errors.Is 判斷
var (
	ErrDownload   = errors.New("download failed")
	ErrProbe      = errors.New("probe failed")
	ErrEncode     = errors.New("encode failed")
	ErrUpload     = errors.New("upload failed")
	ErrValidation = errors.New("validation failed")

	ErrVideoNotFound     = errors.New("video not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Stage pipeline 階段
type Stage string

const (
	StageDownload Stage = "download"
	StageProbe    Stage = "probe"
	StageEncode   Stage = "encode"
	StageUpload   Stage = "upload"
)

var stageSentinel = map[Stage]error{
	StageDownload: ErrDownload,
	StageProbe:    ErrProbe,
	StageEncode:   ErrEncode,
	StageUpload:   ErrUpload,
}

// StageError 某階段失敗. Message 會寫入 Video.Message
type StageError struct {
	Stage   Stage
	Message string
	Err     error
}

// NewStageError create stage error
func NewStageError(stage Stage, message string, err error) *StageError {
	return &StageError{Stage: stage, Message: message, Err: err}
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Is 讓 errors.Is(err, ErrEncode) 對應到階段
func (e *StageError) Is(target error) bool {
	return stageSentinel[e.Stage] == target
}

// FailureMessage 取得寫入 Video 的錯誤訊息
func FailureMessage(err error) string {
	var se *StageError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
