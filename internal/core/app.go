package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"hiveboard/internal/config"
	"hiveboard/internal/eventbus"
	"hiveboard/internal/schedule"
	"hiveboard/internal/services/scheduler"
	"hiveboard/internal/storage"
	"hiveboard/internal/syncapi"
	"hiveboard/internal/transport"
	"hiveboard/internal/transport/telegram"
	"hiveboard/pkg/logx"
)

// App wires the scheduling board core to its delivery surface: config,
// logging, the Telegram adapter, the background scheduler, the sync
// client, the board itself and the plugin registry.
type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *Supervisor

	log  logx.Logger
	logs *logx.Service

	adapter transport.Adapter

	sched *scheduler.Service
	bus   eventbus.Bus
	store *schedule.Store
	board *schedule.Board
	audit storage.Store

	serv *Services
	cmdm *CommandManager
	pm   *PluginManager

	updates chan transport.Update
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole(cfg.Logging.Level).With(logx.String("comp", "telegram"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, bootLog)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}, ad)
	log = log.With(logx.String("comp", "app"))

	// Set Telegram log target (chat + thread)
	if strings.TrimSpace(cfg.Telegram.GroupLog) != "" {
		if chatID, err := strconv.ParseInt(strings.TrimSpace(cfg.Telegram.GroupLog), 10, 64); err == nil {
			logSvc.SetTelegramTarget(chatID, cfg.Logging.Telegram.ThreadID)
		}
	}

	defaultTimeout, err := config.ParseDurationField("scheduler.default_timeout", cfg.Scheduler.DefaultTimeout)
	if err != nil {
		return nil, err
	}
	schedSvc := scheduler.New(scheduler.Config{
		Enabled:        cfg.Scheduler.Enabled,
		Workers:        cfg.Scheduler.Workers,
		DefaultTimeout: defaultTimeout,
		HistorySize:    cfg.Scheduler.HistorySize,
		Timezone:       cfg.Scheduler.Timezone,
	}, log.With(logx.String("comp", "scheduler")))

	// Board core: store + sync client + draft state machine.
	bus := eventbus.New()
	store := schedule.NewStore(bus)

	client, err := newSyncClient(cfg, log)
	if err != nil {
		return nil, err
	}
	board := schedule.NewBoard(store, client, log.With(logx.String("comp", "board")))

	// Optional submit audit trail.
	var audit storage.Store
	if cfg.Storage != nil {
		busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
		if err != nil {
			return nil, err
		}
		audit, err = storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
	}
	if audit != nil {
		board.SetAudit(func(ctx context.Context, o schedule.SubmitOutcome) {
			rec := storage.SubmitRecord{
				At:          o.At,
				Date:        o.Date.String(),
				Tasks:       o.Tasks,
				Entries:     o.Entries,
				Provisional: o.Provisional,
				Error:       o.Error,
				TookMS:      o.Took.Milliseconds(),
			}
			if err := audit.AppendSubmit(ctx, rec); err != nil {
				log.Warn("audit append failed", logx.Err(err))
			}
		})
	}

	serv := &Services{
		Scheduler: schedSvc,
		Board:     board,
		Store:     store,
		Audit:     audit,
		Bus:       bus,
	}
	serv.SetCandidateTasks(cfg.Board.CandidateTasks)

	cmdm := NewCommandManager(log.With(logx.String("comp", "commands")),
		ad, cfgm, serv, cfg.Telegram.OwnerUserIDs)

	pm := NewPluginManager(log.With(logx.String("comp", "plugins")),
		cfgm, PluginDeps{
			Logger:      log,
			Adapter:     ad,
			Config:      cfgm,
			Services:    serv,
			OwnerUserID: cfg.Telegram.OwnerUserIDs,
		}, cmdm)

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		adapter: ad,
		sched:   schedSvc,
		bus:     bus,
		store:   store,
		board:   board,
		audit:   audit,
		serv:    serv,
		cmdm:    cmdm,
		pm:      pm,
		updates: make(chan transport.Update, 256),
	}, nil
}

func newSyncClient(cfg *config.Config, log logx.Logger) (*syncapi.Client, error) {
	timeout, err := config.ParseDurationOrDefault("board.timeout", cfg.Board.Timeout, 30*time.Second)
	if err != nil {
		return nil, err
	}
	return syncapi.New(syncapi.Config{
		Endpoint: cfg.Board.Endpoint,
		Timeout:  timeout,
	}, log.With(logx.String("comp", "syncapi")))
}

func (a *App) Plugins() *PluginManager { return a.pm }

// Board exposes the scheduling board (used by tests and tooling).
func (a *App) Board() *schedule.Board { return a.board }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = NewSupervisor(ctx, WithLogger(a.log), WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(c context.Context, cfg *config.Config) error {
		if cfg.Scheduler.Workers < 0 {
			return fmt.Errorf("scheduler.workers must be >= 0")
		}
		if _, err := config.ParseDurationField("scheduler.default_timeout", cfg.Scheduler.DefaultTimeout); err != nil {
			return err
		}
		if _, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
			return err
		}
		if _, err := config.ParseDurationField("board.timeout", cfg.Board.Timeout); err != nil {
			return err
		}
		if strings.TrimSpace(cfg.Board.Endpoint) == "" {
			return fmt.Errorf("board.endpoint is required")
		}
		if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				return fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
			}
		}
		if a.pm != nil {
			return a.pm.ValidateConfig(c, cfg)
		}
		return nil
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	if a.sched.Enabled() {
		a.sched.Start(a.sup.Context())
	}
	a.registerJobs(a.cfgm.Get())

	// Warm the store with the current month so the first /calendar is not
	// empty. The recurring job covers later months.
	if cfg := a.cfgm.Get(); cfg != nil && cfg.Board.Prefetch.Enabled {
		a.sup.Go0("board.prefetch.initial", func(c context.Context) {
			pctx, cancel := context.WithTimeout(c, 2*time.Minute)
			defer cancel()
			now := time.Now()
			a.board.Prefetch(pctx, now.Year(), now.Month())
		})
	}

	if err := a.pm.StartAll(a.sup.Context()); err != nil {
		return err
	}

	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	})

	// Publish registered commands to the platform menu (best-effort).
	if mu, ok := a.adapter.(transport.CommandMenuUpdater); ok {
		menuCtx, cancel := context.WithTimeout(a.sup.Context(), 10*time.Second)
		if err := mu.UpdateMenuCommands(menuCtx, a.cmdm.MenuCommands()); err != nil {
			a.log.Warn("menu command update failed", logx.Err(err))
		}
		cancel()
	}

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs, pluginChanged := config.SummarizeChange(oldCfg, newCfg)
	if len(sections) > 0 {
		a.log.Debug("config change summary", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)
		if len(pluginChanged) > 0 {
			a.log.Debug("plugin config changes detected", logx.Any("plugins", pluginChanged))
		}
	} else {
		a.log.Debug("config reload received, but no effective changes detected")
	}

	// apply logging updates
	a.logs.Apply(logx.Config{
		Level:   newCfg.Logging.Level,
		Console: newCfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: newCfg.Logging.File.Enabled,
			Path:    newCfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    newCfg.Logging.Telegram.Enabled,
			ThreadID:   newCfg.Logging.Telegram.ThreadID,
			MinLevel:   newCfg.Logging.Telegram.MinLevel,
			RatePerSec: newCfg.Logging.Telegram.RatePerSec,
		},
	})

	// update log target
	if strings.TrimSpace(newCfg.Telegram.GroupLog) != "" {
		if chatID, err := strconv.ParseInt(strings.TrimSpace(newCfg.Telegram.GroupLog), 10, 64); err == nil {
			a.logs.SetTelegramTarget(chatID, newCfg.Logging.Telegram.ThreadID)
		}
	} else {
		a.logs.SetTelegramTarget(0, 0)
	}

	// Owner list for AccessOwnerOnly checks and plugin deps.
	a.cmdm.SetOwners(newCfg.Telegram.OwnerUserIDs)
	a.pm.SetOwnerUserIDs(newCfg.Telegram.OwnerUserIDs)

	// Board updates: endpoint/timeout swap and task sheet.
	if oldCfg == nil ||
		oldCfg.Board.Endpoint != newCfg.Board.Endpoint ||
		oldCfg.Board.Timeout != newCfg.Board.Timeout {
		if client, err := newSyncClient(newCfg, a.log); err != nil {
			a.log.Warn("sync client rebuild failed; keeping previous endpoint", logx.Err(err))
		} else {
			a.board.SetClient(client)
		}
	}
	a.serv.SetCandidateTasks(newCfg.Board.CandidateTasks)

	// apply scheduler updates (live)
	prevSchedEnabled := a.sched.Enabled()
	newDefaultTimeout, err := config.ParseDurationField("scheduler.default_timeout", newCfg.Scheduler.DefaultTimeout)
	if err != nil {
		a.log.Warn("invalid scheduler.default_timeout; using 0", logx.Err(err))
		newDefaultTimeout = 0
	}
	a.sched.Apply(scheduler.Config{
		Enabled:        newCfg.Scheduler.Enabled,
		Workers:        newCfg.Scheduler.Workers,
		DefaultTimeout: newDefaultTimeout,
		HistorySize:    newCfg.Scheduler.HistorySize,
		Timezone:       newCfg.Scheduler.Timezone,
	})

	if prevSchedEnabled && !newCfg.Scheduler.Enabled {
		a.log.Info("scheduler disabled via config")
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		a.sched.Stop(stopCtx)
		cancel()
	} else if !prevSchedEnabled && newCfg.Scheduler.Enabled {
		a.log.Info("scheduler enabled via config")
		a.sched.Start(ctx)
	}
	a.registerJobs(newCfg)

	// apply plugin enable/disable + per-plugin config
	a.pm.OnConfigUpdate(ctx, newCfg)

	if len(sections) > 0 {
		a.log.Info("config reloaded", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)
	} else {
		a.log.Info("config reloaded (no changes)")
	}
}

// registerJobs (re)registers the core background jobs; AddCron upserts by
// name so calling it again on reload is safe.
func (a *App) registerJobs(cfg *config.Config) {
	if cfg == nil {
		return
	}

	if cfg.Board.Prefetch.Enabled {
		spec := strings.TrimSpace(cfg.Board.Prefetch.Schedule)
		if spec == "" {
			spec = "@every 6h"
		}
		ahead := cfg.Board.Prefetch.MonthsAhead
		if ahead < 0 {
			ahead = 0
		}
		if _, err := a.sched.AddCron("board:prefetch", spec, 2*time.Minute, func(c context.Context) error {
			now := time.Now()
			total := 0
			for i := 0; i <= ahead; i++ {
				m := now.AddDate(0, i, 0)
				total += a.board.Prefetch(c, m.Year(), m.Month())
			}
			a.log.Debug("prefetch pass finished", logx.Int("entries", total))
			return nil
		}); err != nil {
			a.log.Warn("prefetch job registration failed", logx.Err(err))
		}
	} else {
		a.sched.Remove("board:prefetch")
	}

	if a.audit != nil {
		if _, err := a.sched.AddDaily("audit:compact", "03:30", time.Minute, func(c context.Context) error {
			removed, err := a.audit.Compact(c)
			if err != nil {
				return err
			}
			if removed > 0 {
				a.log.Debug("audit compacted", logx.Int("removed", removed))
			}
			return nil
		}); err != nil {
			a.log.Warn("audit compact job registration failed", logx.Err(err))
		}
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// First, cancel the app run context so background loops start unwinding immediately.
	a.sup.Cancel()

	// Run each shutdown step with an upper bound so one component can't stall
	// the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// respect the caller's deadline; never extend it
			if dl, ok := ctx.Deadline(); ok {
				rem := time.Until(dl)
				if rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			// Contract: fn MUST honor stepCtx and return promptly. If it doesn't, log a leak signal.
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name), logx.Err(stepCtx.Err()), logx.Duration("elapsed", time.Since(start)))
			go func() {
				err := <-done
				if err != nil {
					a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err), logx.Duration("took", time.Since(start)))
				} else {
					a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", time.Since(start)))
				}
			}()
		}
	}

	// Stop plugins first (they may depend on services). StopAll is timeout-safe per-plugin.
	step("plugins", 4*time.Second, func(c context.Context) error { a.pm.StopAll(c, reason); return nil })

	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	if a.audit != nil {
		step("storage", time.Second, func(c context.Context) error { return a.audit.Close() })
	}

	// Finally, wait for supervised goroutines (config watch/reload, command dispatcher).
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	_ = a.logs.Close()
	a.log.Info("stopped")
	return nil
}
