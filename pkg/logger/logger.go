// Package logger предоставляет единый интерфейс логирования для всех слоёв приложения.
package logger

import (
	"fmt"
	"log/slog"
	"os"
)

// Logger — интерфейс логгера, внедряемый во все компоненты.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(err error, format string, args ...any)
}

// SlogLogger реализует Logger поверх стандартного log/slog.
type SlogLogger struct {
	log *slog.Logger
}

// NewSlogLogger создаёт логгер с текстовым выводом в stderr.
// Уровень задаётся переменной окружения LOG_LEVEL (debug|info|warn|error).
func NewSlogLogger() *SlogLogger {
	level := parseLevel(os.Getenv("LOG_LEVEL"))
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})

	return &SlogLogger{
		log: slog.New(handler),
	}
}

func (s *SlogLogger) Debugf(format string, args ...any) {
	s.log.Debug(fmt.Sprintf(format, args...))
}

func (s *SlogLogger) Infof(format string, args ...any) {
	s.log.Info(fmt.Sprintf(format, args...))
}

func (s *SlogLogger) Warnf(format string, args ...any) {
	s.log.Warn(fmt.Sprintf(format, args...))
}

// Errorf логирует сообщение с ошибкой отдельным атрибутом.
func (s *SlogLogger) Errorf(err error, format string, args ...any) {
	s.log.Error(fmt.Sprintf(format, args...), slog.Any("error", err))
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
