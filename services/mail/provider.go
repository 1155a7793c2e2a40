package mail

import (
	"github.com/tech-arch1tect/medgate/config"
	"github.com/tech-arch1tect/medgate/services/logging"
	"go.uber.org/fx"
)

func ProvideMailService(cfg *config.Config, logger *logging.Service) (*Service, error) {
	return NewService(&cfg.Mail, logger)
}

var Module = fx.Options(
	fx.Provide(ProvideMailService),
)
