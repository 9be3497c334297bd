// Package app wires the stretch bot together: config, logging, storage,
// chat transport, triggers, the bot itself and the optional relay and MQTT
// mirror. It owns start order, hot reload and shutdown order.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stretchbot/internal/bot"
	"stretchbot/internal/config"
	"stretchbot/internal/conversation"
	"stretchbot/internal/directory"
	"stretchbot/internal/eventbus"
	"stretchbot/internal/holiday"
	"stretchbot/internal/mqttpub"
	"stretchbot/internal/negotiate"
	"stretchbot/internal/notifier"
	"stretchbot/internal/relay"
	"stretchbot/internal/reminder"
	"stretchbot/internal/runtime/supervisor"
	"stretchbot/internal/storage"
	"stretchbot/internal/toggle"
	kit "stretchbot/internal/transport"
	"stretchbot/internal/transport/telegram"
	"stretchbot/internal/trigger"
	logx "stretchbot/pkg/logx"
)

// Trigger names.
const (
	JobAsk    = "ask"
	JobRemind = "remind"
	JobReset  = "reset"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	adapter  *telegram.Adapter
	triggers *trigger.Service
	rem      *reminder.Scheduler
	cal      *holiday.Calendar
	dir      *directory.Directory
	notif    *notifier.Service
	bot      *bot.Bot
	relay    *relay.Server
	mqtt     *mqttpub.Publisher

	updates chan kit.Update
}

// New loads and validates the config at cfgPath and builds every
// component. Nothing runs until Start.
func New(ctx context.Context, cfgPath string) (*App, error) {
	bootLog := logx.NewConsole("info")
	cfgm := config.NewManager(cfgPath, bootLog)
	cfg, err := cfgm.Parse()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	applyEnv(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfgm.Commit(cfg)

	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: config.MustDuration(cfg.Telegram.PollTimeout, 10*time.Second),
	}, bootLog.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	// Set the chat target before enabling the chat sink.
	logCfg := mapLogging(cfg)
	chatEnabled := logCfg.Chat.Enabled
	logCfg.Chat.Enabled = false
	logs, log := logx.New(logCfg, ad)
	logs.SetChatTarget(mapLogTarget(cfg))
	logCfg.Chat.Enabled = chatEnabled
	logs.Apply(logCfg)

	a := &App{
		cfgm:    cfgm,
		log:     log.With(logx.String("comp", "app")),
		logs:    logs,
		bus:     eventbus.New(),
		adapter: ad,
		updates: make(chan kit.Update, 256),
	}
	cfgm.SetLogger(log)

	if a.store, err = storage.Open(ctx, mapStorage(cfg), log.With(logx.String("comp", "storage"))); err != nil {
		return nil, err
	}
	if a.store != nil {
		a.log.Info("storage enabled", logx.String("driver", cfg.Storage.Driver))
	}

	a.triggers = trigger.New(trigger.Config{Timezone: cfg.Schedule.Timezone}, log)
	a.rem = reminder.New(mapReminders(cfg, a.triggers.Location()), a.bus, log)
	if a.cal, err = mapHolidays(cfg); err != nil {
		return nil, err
	}
	if a.dir, err = directory.New(mapDirectory(cfg), ad, log); err != nil {
		return nil, err
	}
	a.notif = notifier.New(mapNotifier(cfg), ad, a.bus, log)

	fallback, startup := mapNegotiation(cfg)
	a.bot = bot.New(mapBot(cfg), bot.Deps{
		Adapter:       ad,
		Conversations: conversation.New(),
		Negotiator:    negotiate.New(fallback, log),
		Reminders:     a.rem,
		Toggle:        toggle.New(a.store, a.bus, log),
		Holidays:      a.cal,
		Directory:     a.dir,
		Notifier:      a.notif,
		Triggers:      a.triggers,
		Store:         a.store,
		Log:           log,
	})
	a.relay = relay.New(mapRelay(cfg), a.dir, a.notif, a.store, a.bus, log)
	a.mqtt = mqttpub.New(mapMQTT(cfg), a.bus, a.rem.Session, log)

	if err := a.registerJobs(cfg); err != nil {
		return nil, err
	}
	// A session exists from boot so reminders work before the first ask.
	a.rem.ScheduleNext(startup)
	return a, nil
}

func (a *App) registerJobs(cfg *config.Config) error {
	timeout := mapJobTimeout(cfg)
	for _, j := range []struct {
		name, spec string
		job        trigger.Job
	}{
		{JobAsk, cfg.Schedule.Ask, a.bot.AskForTime},
		{JobRemind, cfg.Schedule.Remind, a.bot.SendReminders},
		{JobReset, cfg.Schedule.Reset, a.bot.ResetDaily},
	} {
		if err := a.triggers.AddCron(j.name, j.spec, timeout, j.job); err != nil {
			return fmt.Errorf("schedule.%s: %w", j.name, err)
		}
	}
	return nil
}

// Done is closed when the app supervisor stops (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.NewSupervisor(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	run := a.sup.Context()

	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		applyEnv(cfg)
		return validate(cfg)
	})

	if err := a.adapter.Start(run, a.updates); err != nil {
		return err
	}
	a.notif.Start(run)
	a.triggers.Start(run)

	if a.relayEnabled() {
		if err := a.relay.Start(run); err != nil {
			return err
		}
	}
	if cfg := a.cfgm.Get(); cfg.MQTT != nil && cfg.MQTT.Enabled {
		a.sup.GoRestart("mqtt", a.mqtt.Run,
			supervisor.WithRestartBackoff(time.Second, time.Minute),
			supervisor.WithStopOnCleanExit(true),
		)
	}

	a.sup.Go("bot.dispatch", func(c context.Context) error {
		return a.bot.Run(c, a.updates)
	})
	a.sup.Go0("eventbus.log", a.logEvents)
	a.sup.Go0("config.reload", a.reloadLoop)
	a.sup.Go("config.watch", a.cfgm.Watch)

	notifyReady(a.log)
	a.log.Info("app started",
		logx.String("channel", a.cfgm.Get().Bot.Channel),
		logx.String("session", a.rem.Session().Pretty()),
	)
	return nil
}

func (a *App) relayEnabled() bool {
	cfg := a.cfgm.Get()
	return cfg.Relay != nil && cfg.Relay.Enabled
}

func (a *App) logEvents(ctx context.Context) {
	events, unsub := a.bus.Subscribe(128)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			a.log.Debug("event", logx.String("type", e.Type), logx.Any("data", e.Data))
		}
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	notifyStopping(a.log)
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	// Each step gets at most max, never more than the caller's deadline.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

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
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("relay", 3*time.Second, a.relay.Stop)
	step("triggers", 2*time.Second, func(c context.Context) error { a.triggers.Stop(c); return nil })
	step("notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("adapter", 2*time.Second, a.adapter.Stop)
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", time.Second, func(context.Context) error {
		if a.store == nil {
			return nil
		}
		return a.store.Close()
	})

	a.log.Info("stopped")
	return a.logs.Close()
}

// reloadLoop applies published configs. Sections that can't change live
// (token, storage, negotiation fallback, mqtt, relay listen address) log a
// restart hint instead.
func (a *App) reloadLoop(ctx context.Context) {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts; only the newest matters.
			for drained := false; !drained; {
				select {
				case newer := <-sub:
					if newer != nil {
						cfg = newer
					}
				default:
					drained = true
				}
			}
			a.apply(ctx, last, cfg)
			last = cfg
		}
	}
}

func (a *App) apply(ctx context.Context, prev, cfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, cfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, no effective changes")
		return
	}
	changed := map[string]bool{}
	for _, s := range sections {
		changed[s] = true
	}

	if changed["logging"] || changed["telegram"] {
		a.logs.SetChatTarget(mapLogTarget(cfg))
		a.logs.Apply(mapLogging(cfg))
	}
	if changed["telegram"] && prev.Telegram.Token != cfg.Telegram.Token {
		a.log.Warn("telegram token changed; restart required")
	}
	if changed["storage"] {
		a.log.Warn("storage config changed; restart required")
	}
	if changed["negotiation"] {
		a.log.Warn("negotiation config changed; restart required")
	}
	if changed["mqtt"] {
		a.log.Warn("mqtt config changed; restart required")
	}

	if changed["schedule"] {
		a.triggers.Apply(trigger.Config{Timezone: cfg.Schedule.Timezone})
		if err := a.registerJobs(cfg); err != nil {
			a.log.Warn("schedule update failed; keeping previous triggers", logx.Err(err))
		}
	}
	if changed["schedule"] || changed["reminders"] {
		a.rem.Apply(mapReminders(cfg, a.triggers.Location()))
	}
	if changed["holidays"] {
		var err error
		if cfg.Holidays == nil {
			err = a.cal.Replace(2018, holiday.Ontario2018)
		} else {
			err = a.cal.Replace(cfg.Holidays.Year, cfg.Holidays.Dates)
		}
		if err != nil {
			a.log.Warn("holiday update failed; keeping previous table", logx.Err(err))
		}
	}
	if changed["directory"] {
		if err := a.dir.Apply(mapDirectory(cfg)); err != nil {
			a.log.Warn("directory update failed", logx.Err(err))
		}
	}
	if changed["bot"] {
		a.bot.Apply(mapBot(cfg))
	}
	if changed["notifier"] {
		wasEnabled := a.notif.Enabled()
		nc := mapNotifier(cfg)
		a.notif.Apply(nc)
		switch {
		case wasEnabled && !nc.Enabled:
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.notif.Stop(stopCtx)
			cancel()
		case !wasEnabled && nc.Enabled:
			a.notif.Start(ctx)
		}
	}
	if changed["relay"] {
		a.applyRelay(ctx, prev, cfg)
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config applied", fields...)
}

func (a *App) applyRelay(ctx context.Context, prev, cfg *config.Config) {
	rc := mapRelay(cfg)
	old := mapRelay(prev)
	a.relay.Apply(rc)
	restart := old.Enabled != rc.Enabled || old.Addr != rc.Addr
	if !restart {
		return
	}
	if old.Enabled {
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := a.relay.Stop(stopCtx); err != nil {
			a.log.Warn("relay stop failed", logx.Err(err))
		}
		cancel()
	}
	if rc.Enabled {
		if err := a.relay.Start(ctx); err != nil {
			a.log.Error("relay restart failed", logx.Err(err))
		}
	}
}
