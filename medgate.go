package medgate

import (
	"github.com/tech-arch1tect/medgate/config"
	"github.com/tech-arch1tect/medgate/database"
	"github.com/tech-arch1tect/medgate/services/challenge"
	"github.com/tech-arch1tect/medgate/services/logging"
	"github.com/tech-arch1tect/medgate/services/mail"
	"github.com/tech-arch1tect/medgate/services/sms"
	"github.com/tech-arch1tect/medgate/services/smscode"
	"github.com/tech-arch1tect/medgate/services/twofactor"
	"github.com/tech-arch1tect/medgate/session"
	"go.uber.org/fx"
)

// Models returns every gorm model the module persists, for hosts that run
// their own migrations instead of relying on auto-migrate.
func Models() []any {
	return []any{
		&twofactor.TwoFactorProfile{},
		&smscode.VerificationCode{},
	}
}

// Module bundles the two-factor verification core for a host application's
// fx graph. Pass a nil config to load configuration from the environment.
func Module(customConfig *config.Config) fx.Option {
	return fx.Options(
		config.NewProvider(customConfig),
		fx.Provide(func() *database.ModelsOption {
			return database.WithModels(Models()...)
		}),
		fx.Provide(func() *session.Options {
			return nil
		}),
		logging.Module,
		database.Module,
		session.Module,
		smscode.Module,
		sms.Module,
		mail.Module,
		challenge.Options,
		twofactor.Module,
	)
}
