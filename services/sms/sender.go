package sms

import (
	"context"

	"github.com/tech-arch1tect/medgate/services/logging"
	"go.uber.org/zap"
)

// LogSender writes messages to the application log instead of a carrier.
// Intended for development and test environments.
type LogSender struct {
	logger *logging.Service
}

func NewLogSender(logger *logging.Service) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, phoneNumber, message string) error {
	if s.logger != nil {
		s.logger.Info("SMS delivery (log sender)",
			zap.String("phone_number", phoneNumber),
			zap.String("message", message))
	}
	return nil
}
