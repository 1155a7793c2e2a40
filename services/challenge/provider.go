package challenge

import (
	"github.com/tech-arch1tect/medgate/config"
	"github.com/tech-arch1tect/medgate/services/logging"
	"go.uber.org/fx"
)

func NewChallengeService(cfg *config.Config, logger *logging.Service) (*Service, error) {
	return NewService(cfg, logger)
}

var Options = fx.Options(
	fx.Provide(NewChallengeService),
)
