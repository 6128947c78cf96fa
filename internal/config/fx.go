package config

import (
	"github.com/subflowhq/rebill/internal/gateway"
	"github.com/subflowhq/rebill/internal/notify"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewPlanCatalogHolder),
	fx.Provide(provideGatewayConfig),
	fx.Provide(provideNotifyConfig),
	fx.Invoke(validate),
)

func validate(cfg Config) error {
	return cfg.Validate()
}

func provideGatewayConfig(cfg Config) gateway.Config {
	return gateway.Config{
		BaseURL:   cfg.GatewayBaseURL,
		APIKey:    cfg.GatewayAPIKey,
		SecretKey: cfg.GatewaySecretKey,
		Timeout:   cfg.GatewayTimeout,
	}
}

func provideNotifyConfig(cfg Config) notify.Config {
	return notify.Config{
		BotToken: cfg.TelegramBotToken,
		ChatID:   cfg.TelegramChatID,
	}
}
