package gateway

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("gateway",
	fx.Provide(ProvideAdapter),
)

func ProvideAdapter(cfg Config, log *zap.Logger) (Adapter, error) {
	return NewClient(cfg, log)
}
