package rebill

import (
	"context"

	appconfig "github.com/subflowhq/rebill/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("rebill",
	fx.Provide(provideConfig),
	fx.Provide(New),
	fx.Invoke(StartScheduler),
)

func provideConfig(cfg appconfig.Config) Config {
	return Config{
		ScanInterval:      cfg.ScanInterval,
		LookbackWindow:    cfg.LookbackWindow,
		BatchSize:         cfg.BatchSize,
		BackfillBatchSize: cfg.BackfillBatchSize,
		DebounceWindow:    cfg.DebounceWindow,
		AttemptTimeout:    cfg.GatewayTimeout,
	}
}

// StartScheduler runs the one-time backfill and then the scan loop for
// the lifetime of the process.
func StartScheduler(lc fx.Lifecycle, log *zap.Logger, sched *Scheduler) {
	runCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := sched.RunBackfill(ctx); err != nil {
				log.Warn("schedule backfill finished with errors", zap.Error(err))
			}
			go sched.RunForever(runCtx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
