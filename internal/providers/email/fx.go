package email

import (
	"github.com/smallbiznis/kanakku/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	emailCfg := Config{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.SMTPUsername,
		Password: cfg.Email.SMTPPassword,
		From:     cfg.Email.SMTPFrom,
		StartTLS: cfg.Email.SMTPTLS,
	}
	if emailCfg.Host == "" && cfg.Environment == "development" {
		log.Named("providers.email").Warn("SMTP host not set; outbound email is discarded")
		return &NoOpProvider{}
	}
	return NewSMTP(emailCfg)
}
