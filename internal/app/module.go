package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/membership/internal/app/api/server"
	"github.com/fatflowers/membership/internal/app/service/billing"
	"github.com/fatflowers/membership/internal/app/service/history"
	"github.com/fatflowers/membership/internal/app/service/lifecycle"
	"github.com/fatflowers/membership/internal/app/service/statistics"
	"github.com/fatflowers/membership/internal/app/service/usage"
	"github.com/fatflowers/membership/internal/platform/db"
	"github.com/fatflowers/membership/internal/platform/events"
	"github.com/fatflowers/membership/internal/store"
	"github.com/fatflowers/membership/pkg/config"
	"github.com/fatflowers/membership/pkg/logger"
	"github.com/fatflowers/membership/pkg/metrics"
	"github.com/fatflowers/membership/pkg/resilience"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	store.Module,
	events.Module,
	resilience.Module,
	fx.Provide(metrics.NewSink),
	server.Module,
	lifecycle.Module,
	billing.Module,
	usage.Module,
	history.Module,
	statistics.Module,
)
