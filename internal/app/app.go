// Package app wires the bot together: config, logging, storage, the
// command engine and the Telegram transport.
package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"repeatbot/internal/config"
	"repeatbot/internal/dateparse"
	"repeatbot/internal/services/actualizer"
	"repeatbot/internal/storage"
	"repeatbot/internal/task"
	kit "repeatbot/internal/transport"
	tgadapter "repeatbot/internal/transport/telegram/adapter"
	"repeatbot/internal/transport/telegram/router"
	logx "repeatbot/pkg/logx"
)

const (
	updateBuffer    = 64
	defaultCronSpec = "5 0 * * *"
)

type App struct {
	cfgm *config.Manager
	logs *logx.Service
	log  logx.Logger

	adapter  *tgadapter.Adapter
	router   *router.Router
	resolver *task.Resolver
	clock    task.Clock

	store  storage.Store
	act    *actualizer.Service
	engine *Engine

	updates chan kit.Update
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logs, log := logx.New(logxConfig(cfg.Logging), nil)
	cfgm.SetLogger(log.With(logx.String("svc", "config")))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := tgadapter.New(tgadapter.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("svc", "telegram")))
	if err != nil {
		return nil, fmt.Errorf("telegram adapter: %w", err)
	}

	if cfg.Logging.Chat.Enabled {
		chatID, err := strconv.ParseInt(strings.TrimSpace(cfg.Telegram.GroupLog), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("telegram.group_log: %w", err)
		}
		logs.SetChatSink(&chatLogSink{adapter: adapter, chatID: chatID})
	}

	clock := task.SystemClock()
	resolver := &task.Resolver{
		Parser:        dateparse.New(),
		Clock:         clock,
		DefaultPeriod: cfg.Tasks.DefaultPeriod,
		PerDayLimit:   cfg.Tasks.PerDayLimit,
	}

	a := &App{
		cfgm:     cfgm,
		logs:     logs,
		log:      log,
		adapter:  adapter,
		resolver: resolver,
		clock:    clock,
		updates:  make(chan kit.Update, updateBuffer),
	}
	a.router = router.New(log.With(logx.String("svc", "router")), adapter)

	// Only logging survives a hot reload; token or storage changes need a
	// restart and are just logged.
	cfgm.OnChange(func(next *config.Config) {
		logs.Apply(logxConfig(next.Logging))
		log.Info("logging config applied")
	})
	return a, nil
}

func (a *App) Start(ctx context.Context) error {
	cfg := a.cfgm.Get()

	store, err := openStorage(cfg, a.log)
	if err != nil {
		return err
	}
	a.store = store
	a.act = actualizer.New(store, a.clock, a.log.With(logx.String("svc", "actualizer")))
	a.engine = NewEngine(store, a.resolver, a.act, a.clock, a.log.With(logx.String("svc", "engine")))
	a.registerCommands()

	// Catch up on time that passed while the bot was down before the
	// first command can observe stale due dates.
	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = a.act.Sweep(initCtx)
	cancel()
	if err != nil {
		a.log.Warn("startup sweep failed", logx.Err(err))
	}

	runCtx, stop := context.WithCancel(context.Background())
	a.cancel = stop

	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		stop()
		_ = store.Close()
		return fmt.Errorf("start telegram: %w", err)
	}
	a.router.UpdateMenu(runCtx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.router.DispatchLoop(runCtx, a.updates)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(runCtx)
	}()

	if cfg.Scheduler.Enabled {
		if err := a.startCron(cfg.Scheduler); err != nil {
			a.log.Warn("scheduled sweep disabled", logx.Err(err))
		}
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.log.Info("bot started")
	return nil
}

func (a *App) startCron(cfg config.SchedulerConfig) error {
	spec := strings.TrimSpace(cfg.Spec)
	if spec == "" {
		spec = defaultCronSpec
	}
	loc := time.Local
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("scheduler.timezone: %w", err)
		}
		loc = l
	}
	return a.act.StartCron(spec, loc)
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	if a.act != nil {
		a.act.StopCron()
	}
	if a.cancel != nil {
		a.cancel()
	}
	if err := a.adapter.Stop(ctx); err != nil {
		a.log.Warn("telegram stop", logx.Err(err))
	}
	a.wg.Wait()
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close", logx.Err(err))
		}
	}
	a.log.Info("bot stopped")
	return a.logs.Close()
}

func openStorage(cfg *config.Config, log logx.Logger) (storage.Store, error) {
	sc := storage.Config{Driver: "sqlite", Path: "./repeatbot.db"}
	if cfg.Storage != nil {
		if cfg.Storage.Driver != "" {
			sc.Driver = cfg.Storage.Driver
		}
		if cfg.Storage.Path != "" {
			sc.Path = cfg.Storage.Path
		}
		bt, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
		if err != nil {
			return nil, err
		}
		sc.BusyTimeout = bt
	}
	store, err := storage.Open(sc, log.With(logx.String("svc", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return store, nil
}

func logxConfig(lc config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   lc.Level,
		Console: lc.Console,
		File: logx.FileConfig{
			Enabled: lc.File.Enabled,
			Path:    lc.File.Path,
		},
		Chat: logx.ChatConfig{
			Enabled:    lc.Chat.Enabled,
			MinLevel:   lc.Chat.MinLevel,
			RatePerSec: lc.Chat.RatePerSec,
		},
	}
}

// chatLogSink forwards formatted log lines to the operator group chat.
type chatLogSink struct {
	adapter *tgadapter.Adapter
	chatID  int64
}

func (s *chatLogSink) LogLine(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _ = s.adapter.SendText(ctx, kit.ChatTarget{ChatID: s.chatID}, text, nil)
}
