package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/abquickfix/fixengine"
	"github.com/abquickfix/fixengine/config"
	"github.com/abquickfix/fixengine/datadictionary"
	"github.com/abquickfix/fixengine/internal/log"
	"github.com/abquickfix/fixengine/store"
)

func newStartCmd() *cobra.Command {
	var configPath string
	var logDir string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start every acceptor/initiator session named in a settings file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("fixctl start: --config is required")
			}
			settings, err := config.Load(configPath)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return runSessions(ctx, configPath, settings, logDir)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to the [Default]/[Session] settings file")
	cmd.Flags().StringVar(&logDir, "log-dir", "", "directory for per-session file logs (screen logging if empty)")
	return cmd
}

func runSessions(ctx context.Context, configPath string, settings *config.Settings, logDir string) error {
	registry := fixengine.NewRegistry()
	memStore := store.NewMemStore()
	sessionsByID := map[fixengine.SessionID]*fixengine.Session{}

	g, gctx := errgroup.WithContext(ctx)

	for _, sec := range settings.Sessions {
		sec := sec
		id := fixengine.NewSessionID(
			sec[config.KeyBeginString],
			sec[config.KeySenderCompID], sec[config.KeySenderSubID], sec[config.KeySenderLocationID],
			sec[config.KeyTargetCompID], sec[config.KeyTargetSubID], sec[config.KeyTargetLocationID],
			sec[config.KeySessionQualifier],
		)

		dd, err := datadictionary.Load(sec[config.KeyDataDictionary])
		if err != nil {
			return fmt.Errorf("session %s: %w", id, err)
		}

		var lg log.Log
		if logDir != "" {
			fl, err := log.NewFileLog(logDir, id.String())
			if err != nil {
				return fmt.Errorf("session %s: %w", id, err)
			}
			defer fl.Close()
			lg = fl
		} else {
			lg = log.NewScreenLog(id.String())
		}

		sched := fixengine.NewNonStopSchedule()
		if sec[config.KeyStartTime] != "" || sec[config.KeyStartDay] != "" {
			sched, err = scheduleFromSection(sec)
			if err != nil {
				return fmt.Errorf("session %s: %w", id, err)
			}
		}

		sessionSettings := fixengine.DefaultSettings()
		sessionSettings.HeartBtInt = time.Duration(sec.Int(config.KeyHeartbeatInterval, 30)) * time.Second
		sessionSettings.ResetOnLogon = sec.Bool(config.KeyResetOnLogon, true)
		sessionSettings.ResetOnLogout = sec.Bool(config.KeyResetOnLogout, true)
		sessionSettings.ResetOnDisconnect = sec.Bool(config.KeyResetOnDisconnect, true)
		sessionSettings.ValidateEnumVals = sec.Bool(config.KeyValidateEnumValues, true)
		if v := sec.Int(config.KeyMaxLatency, 0); v > 0 {
			sessionSettings.MaxLatency = time.Duration(v) * time.Second
		}
		if v := sec.Int(config.KeyReconnectInterval, 0); v > 0 {
			sessionSettings.ReconnectInterval = time.Duration(v) * time.Second
		}

		sess := fixengine.NewSession(id, dd, sessionSettings, sched, memStore, lg)
		registry.Register(sess)
		sessionsByID[id] = sess

		engine := fixengine.NewEngine(registry, nil)
		g.Go(func() error { return engine.Run(gctx) })
		g.Go(func() error { return runSessionTicker(gctx, sess) })

		switch sec[config.KeyConnectionType] {
		case config.ConnectionTypeAcceptor:
			port, err := sec.Uint16(config.KeySocketAcceptPort)
			if err != nil {
				return err
			}
			acc := &fixengine.Acceptor{Addr: fmt.Sprintf(":%d", port), EngineCh: engine.Inbound()}
			g.Go(func() error { return acc.Serve(gctx) })
		case config.ConnectionTypeInitiator:
			port, err := sec.Uint16(config.KeySocketConnectPort)
			if err != nil {
				return err
			}
			init := &fixengine.Initiator{
				Addr:           fmt.Sprintf("%s:%d", sec[config.KeySocketConnectHost], port),
				EngineCh:       engine.Inbound(),
				Session:        sess,
				InitialBackoff: sessionSettings.ReconnectInterval,
			}
			g.Go(func() error { return init.Run(gctx) })
		}
	}

	watcher, err := config.WatchFile(configPath)
	if err != nil {
		return fmt.Errorf("fixctl start: watch config: %w", err)
	}
	watcher.OnError = func(err error) {
		fmt.Fprintf(os.Stderr, "fixctl start: config reload failed: %v\n", err)
	}
	g.Go(func() error { return runConfigReloader(gctx, watcher, sessionsByID) })

	err = g.Wait()
	watcher.Close()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runSessionTicker drives sess's heartbeat/TestRequest/Logout timeout
// escalation (spec §5) and its schedule window enforcement (spec §4.7),
// since neither CheckTimers nor Schedule.IsSessionTime call themselves.
func runSessionTicker(ctx context.Context, sess *fixengine.Session) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if !sess.Schedule.IsSessionTime(now) {
				if sess.IsLoggedOn() {
					_ = sess.InitiateLogout("outside configured schedule window")
				}
				continue
			}
			_ = sess.CheckTimers(now)
		}
	}
}

// runConfigReloader applies NonIdentityKeys from config.WatchFile reloads to
// the matching already-running session (spec §4.9: hot-reloadable keys only
// — connection identity and socket settings still require a restart).
func runConfigReloader(ctx context.Context, watcher *config.Watcher, sessions map[fixengine.SessionID]*fixengine.Session) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case newSettings, ok := <-watcher.Changes:
			if !ok {
				return nil
			}
			applyHotReload(sessions, newSettings)
		}
	}
}

func applyHotReload(sessions map[fixengine.SessionID]*fixengine.Session, settings *config.Settings) {
	for _, sec := range settings.Sessions {
		id := fixengine.NewSessionID(
			sec[config.KeyBeginString],
			sec[config.KeySenderCompID], sec[config.KeySenderSubID], sec[config.KeySenderLocationID],
			sec[config.KeyTargetCompID], sec[config.KeyTargetSubID], sec[config.KeyTargetLocationID],
			sec[config.KeySessionQualifier],
		)
		sess, ok := sessions[id]
		if !ok {
			continue
		}

		updated := sess.Settings
		updated.HeartBtInt = time.Duration(sec.Int(config.KeyHeartbeatInterval, int(updated.HeartBtInt/time.Second))) * time.Second
		updated.ResetOnLogon = sec.Bool(config.KeyResetOnLogon, updated.ResetOnLogon)
		updated.ResetOnLogout = sec.Bool(config.KeyResetOnLogout, updated.ResetOnLogout)
		updated.ResetOnDisconnect = sec.Bool(config.KeyResetOnDisconnect, updated.ResetOnDisconnect)
		updated.ValidateEnumVals = sec.Bool(config.KeyValidateEnumValues, updated.ValidateEnumVals)
		if v := sec.Int(config.KeyMaxLatency, 0); v > 0 {
			updated.MaxLatency = time.Duration(v) * time.Second
		}
		if v := sec.Int(config.KeyReconnectInterval, 0); v > 0 {
			updated.ReconnectInterval = time.Duration(v) * time.Second
		}
		sess.Settings = updated

		if sec[config.KeyStartTime] != "" || sec[config.KeyStartDay] != "" {
			if sched, err := scheduleFromSection(sec); err == nil {
				sess.Schedule = sched
			}
		}
	}
}

func scheduleFromSection(sec config.Section) (*fixengine.Schedule, error) {
	tz := sec[config.KeyDefaultTimezone]
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("default_timezone %q: %w", tz, err)
	}

	startTime, err := parseTimeOfDay(sec[config.KeyStartTime])
	if err != nil {
		return nil, err
	}
	endTime, err := parseTimeOfDay(sec[config.KeyEndTime])
	if err != nil {
		return nil, err
	}

	if sec[config.KeyStartDay] != "" && sec[config.KeyEndDay] != "" {
		startDay, err := parseWeekday(sec[config.KeyStartDay])
		if err != nil {
			return nil, err
		}
		endDay, err := parseWeekday(sec[config.KeyEndDay])
		if err != nil {
			return nil, err
		}
		return fixengine.NewWeeklySchedule(startDay, startTime, endDay, endTime, loc), nil
	}
	return fixengine.NewDailySchedule(startTime, endTime, loc), nil
}

func parseTimeOfDay(v string) (time.Time, error) {
	if v == "" {
		v = "00:00:00"
	}
	t, err := time.Parse("15:04:05", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time-of-day %q: %w", v, err)
	}
	return t, nil
}

func parseWeekday(v string) (time.Weekday, error) {
	days := map[string]time.Weekday{
		"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
		"wednesday": time.Wednesday, "thursday": time.Thursday,
		"friday": time.Friday, "saturday": time.Saturday,
	}
	d, ok := days[strings.ToLower(v)]
	if !ok {
		return 0, fmt.Errorf("invalid weekday %q", v)
	}
	return d, nil
}
