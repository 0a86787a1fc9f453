package resilience

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/membership/pkg/config"
)

func newExecutor(cfg *config.Config, log *zap.SugaredLogger) *Executor {
	s := DefaultSettings()
	if cfg.Resilience.FailureThreshold > 0 {
		s.FailureThreshold = cfg.Resilience.FailureThreshold
	}
	if cfg.Resilience.SuccessThreshold > 0 {
		s.SuccessThreshold = cfg.Resilience.SuccessThreshold
	}
	if cfg.Resilience.Cooldown > 0 {
		s.Cooldown = cfg.Resilience.Cooldown
	}
	if cfg.Resilience.MaxRetries >= 0 {
		s.MaxRetries = cfg.Resilience.MaxRetries
	}
	if cfg.Resilience.InitialDelay > 0 {
		s.InitialDelay = cfg.Resilience.InitialDelay
	}
	if cfg.Resilience.MaxDelay > 0 {
		s.MaxDelay = cfg.Resilience.MaxDelay
	}
	return NewExecutor(s, log)
}

var Module = fx.Options(
	fx.Provide(newExecutor),
)
