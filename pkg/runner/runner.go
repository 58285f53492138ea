// Package runner executes external tools (ffmpeg / ffprobe) and captures
// stdout, stderr and the exit code.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"transcoding_service/pkg/logger"

	"go.uber.org/zap"
)

// Result 外部指令執行結果
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Success exit code == 0
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Runner 執行外部指令的窄介面, 測試時以 fake 取代真實 binary.
// 非零 exit code 不是 error, 只有無法啟動或 ctx 結束才回傳 error.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner 以 os/exec 實作 Runner
type ExecRunner struct{}

// NewExecRunner create ExecRunner
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run 執行指令並收集輸出
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	if name == "" {
		return Result{}, errors.New("runner: empty binary name")
	}

	logger.Log.Debug("exec", zap.String("cmd", name+" "+strings.Join(args, " ")))

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if ctx.Err() != nil {
		res.ExitCode = -1
		return res, fmt.Errorf("%s canceled: %w", name, ctx.Err())
	}

	if runErr == nil {
		return res, nil
	}

	var ee *exec.ExitError
	if errors.As(runErr, &ee) {
		res.ExitCode = ee.ExitCode()
		return res, nil
	}

	// binary 不存在 / 權限不足
	res.ExitCode = -1
	return res, fmt.Errorf("%s failed to start: %w", name, runErr)
}
