package cmd

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/donaldgifford/restock-tracker/internal/catalog"
	"github.com/donaldgifford/restock-tracker/internal/config"
	"github.com/donaldgifford/restock-tracker/internal/engine"
	"github.com/donaldgifford/restock-tracker/internal/history"
	"github.com/donaldgifford/restock-tracker/internal/jsonstore"
	"github.com/donaldgifford/restock-tracker/internal/notify"
	"github.com/donaldgifford/restock-tracker/internal/source"
	"github.com/donaldgifford/restock-tracker/internal/source/feed"
	"github.com/donaldgifford/restock-tracker/internal/source/shopify"
	"github.com/donaldgifford/restock-tracker/internal/state"
	"github.com/donaldgifford/restock-tracker/internal/subscribers"
)

const twilioTimeout = 15 * time.Second

// app holds the stores and services shared by serve and the local commands.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	catalog *catalog.Catalog
	states  *state.Table
	history *history.Log
	subs    *subscribers.Store
	gateway *notify.GuardedGateway
	engine  *engine.Engine
	sources []source.Source
}

type appOptions struct {
	// gateway, when set, delivers notifications for this process in place
	// of the guarded provider. SMS stats are not recorded for it.
	gateway notify.Gateway
}

func newApp(cfg *config.Config, log *slog.Logger, opts appOptions) (*app, error) {
	storeOpts := []jsonstore.Option{
		jsonstore.WithCache(jsonstore.NewCache(cfg.Data.CacheEntries)),
		jsonstore.WithLogger(log),
	}

	catSources := make([]catalog.Source, 0, len(cfg.Sources))
	for i := range cfg.Sources {
		sc := &cfg.Sources[i]
		catSources = append(catSources, catalog.Source{
			Prefix:     sc.Prefix,
			Label:      sc.Label,
			ProductURL: sc.ProductURL,
		})
	}

	a := &app{cfg: cfg, log: log}
	a.catalog = catalog.New(catSources,
		catalog.WithRegistry(cfg.Data.Path(cfg.Data.RegistryFile), storeOpts...),
		catalog.WithLogger(log),
	)
	a.states = state.NewTable(cfg.Data.Path(cfg.Data.StateFile), state.WithStoreOptions(storeOpts...))
	a.history = history.New(cfg.Data.Path(cfg.Data.HistoryFile),
		history.WithMaxEntries(cfg.History.MaxEntries),
		history.WithLabeler(a.catalog),
		history.WithLogger(log),
		history.WithStoreOptions(storeOpts...),
	)
	a.subs = subscribers.New(cfg.Data.Path(cfg.Data.UsersFile),
		subscribers.WithLogger(log),
		subscribers.WithStoreOptions(storeOpts...),
	)

	n := &cfg.Notifications
	a.gateway = notify.NewGuardedGateway(newProvider(n, log), cfg.Data.Path(cfg.Data.StatsFile),
		notify.WithBlocked(n.Blocked),
		notify.WithDailyCap(n.DailyCap),
		notify.WithRateLimit(n.Rate(), 1),
		notify.WithGuardLogger(log),
		notify.WithStatsStoreOptions(storeOpts...),
	)
	var deliver notify.Gateway = a.gateway
	if opts.gateway != nil {
		deliver = opts.gateway
	}
	notifier := notify.NewEngine(deliver, a.catalog, a.subs,
		notify.WithThreshold(n.Threshold()),
		notify.WithTrackerURL(n.TrackerURL),
		notify.WithLogger(log),
	)
	a.engine = engine.NewEngine(a.states, a.history, a.subs, notifier, engine.WithLogger(log))

	etags := shopify.NewETagStore(cfg.Data.Path(cfg.Data.ETagFile), storeOpts...)
	for i := range cfg.Sources {
		src, err := buildSource(&cfg.Sources[i], a.catalog, etags, log)
		if err != nil {
			return nil, err
		}
		a.sources = append(a.sources, src)
	}
	return a, nil
}

// source returns the configured source with the given name.
func (a *app) source(name string) (source.Source, error) {
	for _, s := range a.sources {
		if s.Name() == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", source.ErrUnknownSource, name)
}

func newProvider(n *config.NotificationsConfig, log *slog.Logger) notify.Gateway {
	tw := &n.Twilio
	switch {
	case tw.Configured():
		return notify.NewTwilioGateway(tw.AccountSID, tw.APIKey, tw.APISecret, tw.From,
			notify.WithBaseURL(tw.BaseURL),
			notify.WithHTTPClient(&http.Client{Timeout: twilioTimeout}),
		)
	case tw.Partial():
		log.Warn("twilio credentials incomplete, SMS delivery disabled")
	default:
		log.Info("twilio not configured, SMS delivery disabled")
	}
	return notify.NewNoOpGateway(log)
}

func buildSource(
	sc *config.SourceConfig,
	cat *catalog.Catalog,
	etags *jsonstore.Store[shopify.ETags],
	log *slog.Logger,
) (source.Source, error) {
	limiter := source.NewRateLimiter(sc.Rate(), 1, sc.DailyLimit)
	log = log.With("source", sc.Name)

	switch sc.Type {
	case config.SourceTypeShopify:
		return shopify.New(sc.Name, sc.Prefix, sc.URL, cat,
			shopify.WithETagStore(etags),
			shopify.WithRateLimiter(limiter),
			shopify.WithWorkers(sc.Workers),
			shopify.WithTimeout(sc.Timeout),
			shopify.WithUserAgent(sc.UserAgent),
			shopify.WithLogger(log),
		), nil
	case config.SourceTypeFeed:
		return feed.New(sc.Name, sc.Prefix, sc.URL,
			feed.WithHTTPClient(&http.Client{Timeout: sc.Timeout}),
			feed.WithRateLimiter(limiter),
			feed.WithUserAgent(sc.UserAgent),
			feed.WithLogger(log),
		), nil
	default:
		return nil, fmt.Errorf("%w: source %s has type %q", source.ErrUnknownSource, sc.Name, sc.Type)
	}
}
