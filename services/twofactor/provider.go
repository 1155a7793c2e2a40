package twofactor

import (
	"github.com/tech-arch1tect/medgate/config"
	"github.com/tech-arch1tect/medgate/services/logging"
	"github.com/tech-arch1tect/medgate/services/smscode"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func NewProvider(cfg *config.Config, db *gorm.DB, smsCodes *smscode.Service, logger *logging.Service) *Service {
	return NewService(cfg, db, smsCodes, logger)
}

type OptionalSender struct {
	fx.In
	Sender Sender `optional:"true"`
}

func WireSender(service *Service, opt OptionalSender) {
	if service != nil && opt.Sender != nil {
		service.SetSender(opt.Sender)
	}
}

var Module = fx.Options(
	fx.Provide(NewProvider),
	fx.Invoke(WireSender),
)
