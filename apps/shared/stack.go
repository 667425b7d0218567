// Package shared wires the components used by both the API server and the admin CLI.
package shared

import (
	"context"
	"net/mail"
	"strings"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/masomodb/core"
	"github.com/trezcool/masomodb/core/bootstrap"
	"github.com/trezcool/masomodb/core/entity"
	metricsvc "github.com/trezcool/masomodb/services/metrics"
	"github.com/trezcool/masomodb/storage/cache"
	"github.com/trezcool/masomodb/storage/remote"
	"github.com/trezcool/masomodb/storage/state/sqlite"
)

var _ bootstrap.RemoteStore = (*remote.Gateway)(nil)

// Stack holds the long-lived components built from the configuration.
type Stack struct {
	Gateway      *remote.Gateway
	Tracker      *sqlite.Tracker
	Orchestrator *bootstrap.Orchestrator
	Metrics      *metricsvc.Recorder

	redis *redis.Client
}

// NewStack builds the stack. Redis is optional: when it is not configured or cannot be reached,
// remote reads are cached in memory.
func NewStack(ctx context.Context, conf *core.Config, logger core.Logger) (*Stack, error) {
	s := &Stack{Metrics: metricsvc.New()}
	s.Gateway = remote.NewGateway(s.newCache(ctx, conf, logger), logger)

	tracker, err := sqlite.Open(conf.State.Path)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.Tracker = tracker

	orch, err := bootstrap.New(
		bootstrap.Deps{
			Remote:  s.Gateway,
			Tracker: tracker,
			Catalog: entity.NewCatalog(),
			Logger:  logger,
			Metrics: s.Metrics,
		},
		bootstrap.OptionsFromConfig(conf),
	)
	if err != nil {
		_ = s.Close()
		return nil, errors.Wrap(err, "setting up orchestrator")
	}
	s.Orchestrator = orch
	return s, nil
}

func (s *Stack) newCache(ctx context.Context, conf *core.Config, logger core.Logger) cache.Cache {
	if conf.Redis.Address != "" {
		client, err := cache.Connect(ctx, conf.Redis.Address, conf.Redis.Password, conf.Redis.DB)
		if err == nil {
			s.redis = client
			return cache.NewRedis(client, strings.ToLower(conf.AppName)+":", conf.Remote.CacheTTL)
		}
		logger.Warn("redis unavailable, caching in memory", "error", err)
	}
	return cache.NewMemory(conf.Cache.Size, conf.Remote.CacheTTL)
}

// Close stops the orchestrator (waiting for a background run) then releases the stores.
func (s *Stack) Close() error {
	var errs []error
	if s.Orchestrator != nil {
		errs = append(errs, s.Orchestrator.Close())
	}
	if s.Tracker != nil {
		errs = append(errs, s.Tracker.Close())
	}
	if s.Gateway != nil {
		errs = append(errs, s.Gateway.Close())
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// ReportRecipients parses the operators notified after a bootstrap run. Empty means nobody.
func ReportRecipients(conf *core.Config) ([]mail.Address, error) {
	if strings.TrimSpace(conf.Bootstrap.NotifyEmail) == "" {
		return nil, nil
	}
	list, err := mail.ParseAddressList(conf.Bootstrap.NotifyEmail)
	if err != nil {
		return nil, errors.Wrap(err, "parsing bootstrap.notifyEmail")
	}
	addrs := make([]mail.Address, len(list))
	for i, addr := range list {
		addrs[i] = *addr
	}
	return addrs, nil
}
