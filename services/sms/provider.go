package sms

import (
	"fmt"

	"github.com/tech-arch1tect/medgate/config"
	"github.com/tech-arch1tect/medgate/services/logging"
	"github.com/tech-arch1tect/medgate/services/twofactor"
	"go.uber.org/fx"
)

func NewProvider(cfg *config.Config, logger *logging.Service) (twofactor.Sender, error) {
	switch cfg.SMS.Provider {
	case "log":
		return NewLogSender(logger), nil
	case "gateway":
		return NewGatewaySender(&cfg.SMS, logger)
	default:
		return nil, fmt.Errorf("unsupported SMS provider: %s (supported: log, gateway)", cfg.SMS.Provider)
	}
}

var Module = fx.Options(
	fx.Provide(NewProvider),
)
