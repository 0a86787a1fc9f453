package events

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/membership/pkg/config"
)

func newPublisher(lc fx.Lifecycle, cfg *config.Config, log *zap.SugaredLogger) (Publisher, error) {
	if len(cfg.EventBus.Brokers) == 0 {
		log.Infow("event bus not configured, logging events instead")
		return NewLogPublisher(log), nil
	}

	kp, err := NewKafkaPublisher(cfg.EventBus.Brokers, cfg.EventBus.Topic, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Infow("closing kafka producer")
			return kp.Close()
		},
	})
	log.Infow("event bus configured", "brokers", cfg.EventBus.Brokers, "topic", cfg.EventBus.Topic)
	return kp, nil
}

var Module = fx.Options(
	fx.Provide(newPublisher),
)
