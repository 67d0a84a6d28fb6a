// gormtool\mylog.go
package gormtool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/fatih/color"
)

// Logger 接口
type Logger interface {
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, fields map[string]interface{})
}

// DefaultLogger 默认日志实现，级别前缀带颜色
type DefaultLogger struct {
	logger *log.Logger
	debug  bool
}

func NewDefaultLogger() *DefaultLogger {
	return NewWriterLogger(os.Stdout, false)
}

// NewWriterLogger 写到指定 writer，debug 为 false 时丢弃 Debug 级别
func NewWriterLogger(w io.Writer, debug bool) *DefaultLogger {
	return &DefaultLogger{
		logger: log.New(w, "[DUALSTORE] ", log.LstdFlags|log.Lshortfile),
		debug:  debug,
	}
}

func (l *DefaultLogger) Debug(ctx context.Context, msg string, fields map[string]interface{}) {
	if !l.debug {
		return
	}
	l.log(color.CyanString("[DEBUG]"), msg, fields)
}

func (l *DefaultLogger) Info(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log(color.GreenString("[INFO]"), msg, fields)
}

func (l *DefaultLogger) Warn(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log(color.YellowString("[WARN]"), msg, fields)
}

func (l *DefaultLogger) Error(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log(color.RedString("[ERROR]"), msg, fields)
}

func (l *DefaultLogger) log(level, msg string, fields map[string]interface{}) {
	logMsg := fmt.Sprintf("%s %s", level, msg)
	if len(fields) > 0 {
		jsonFields, _ := json.Marshal(fields)
		logMsg += " " + string(jsonFields)
	}
	l.logger.Output(3, logMsg)
}

// NopLogger 丢弃所有日志，测试用
type NopLogger struct{}

func (NopLogger) Debug(context.Context, string, map[string]interface{}) {}
func (NopLogger) Info(context.Context, string, map[string]interface{})  {}
func (NopLogger) Warn(context.Context, string, map[string]interface{})  {}
func (NopLogger) Error(context.Context, string, map[string]interface{}) {}
