package jobs

import (
	"fmt"

	"github.com/rs/zerolog"
)

// AsynqLogger routes asynq's internal logging through zerolog
type AsynqLogger struct {
	logger zerolog.Logger
}

// NewAsynqLogger adapts logger to asynq.Logger
func NewAsynqLogger(logger zerolog.Logger) *AsynqLogger {
	return &AsynqLogger{logger: logger.With().Str("component", "asynq").Logger()}
}

func (l *AsynqLogger) Debug(args ...interface{}) { l.logger.Debug().Msg(fmt.Sprint(args...)) }
func (l *AsynqLogger) Info(args ...interface{})  { l.logger.Info().Msg(fmt.Sprint(args...)) }
func (l *AsynqLogger) Warn(args ...interface{})  { l.logger.Warn().Msg(fmt.Sprint(args...)) }
func (l *AsynqLogger) Error(args ...interface{}) { l.logger.Error().Msg(fmt.Sprint(args...)) }
func (l *AsynqLogger) Fatal(args ...interface{}) { l.logger.Fatal().Msg(fmt.Sprint(args...)) }
