package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tech-arch1tect/medgate/config"
	"github.com/tech-arch1tect/medgate/services/logging"
	"go.uber.org/zap"
)

var ErrSendFailed = errors.New("SMS gateway rejected the message")

// GatewaySender posts messages to an HTTP SMS gateway. The gateway endpoint,
// credentials and sender id come from configuration; the request body is a
// small JSON document the common gateways accept.
type GatewaySender struct {
	config *config.SMSConfig
	client *http.Client
	logger *logging.Service
}

func NewGatewaySender(cfg *config.SMSConfig, logger *logging.Service) (*GatewaySender, error) {
	if cfg.GatewayURL == "" {
		if logger != nil {
			logger.Error("SMS gateway sender initialization failed: GATEWAY_URL is required")
		}
		return nil, fmt.Errorf("MEDGATE_SMS_GATEWAY_URL is required")
	}

	if logger != nil {
		logger.Info("initializing SMS gateway sender",
			zap.String("gateway_url", cfg.GatewayURL),
			zap.String("from", cfg.From))
	}

	return &GatewaySender{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}, nil
}

type gatewayPayload struct {
	To      string `json:"to"`
	From    string `json:"from,omitempty"`
	Message string `json:"message"`
}

func (s *GatewaySender) Send(ctx context.Context, phoneNumber, message string) error {
	body, err := json.Marshal(gatewayPayload{
		To:      phoneNumber,
		From:    s.config.From,
		Message: message,
	})
	if err != nil {
		return fmt.Errorf("failed to encode SMS payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.GatewayURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build SMS gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("SMS gateway request failed", zap.Error(err))
		}
		return fmt.Errorf("SMS gateway request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if s.logger != nil {
			s.logger.Error("SMS gateway rejected the message",
				zap.Int("status", resp.StatusCode))
		}
		return fmt.Errorf("%w: status %d", ErrSendFailed, resp.StatusCode)
	}

	if s.logger != nil {
		s.logger.Info("SMS handed to gateway",
			zap.String("phone_number", phoneNumber))
	}
	return nil
}
