package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fitcal/internal/capture"
	"fitcal/internal/config"
	"fitcal/internal/grid"
	"fitcal/internal/ics"
	appLog "fitcal/internal/log"
	"fitcal/internal/source"
	"fitcal/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath   string
	listen       string
	once         bool
	month        string
	snapshot     bool
	hashPassword string
}

func main() {
	flags := parseFlags()

	if flags.hashPassword != "" {
		hash, err := web.HashPassword(flags.hashPassword)
		if err != nil {
			appLog.Error("failed to hash password", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	appLog.Info("fitcal starting", "version", "0.1.0")

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if lvl, ok := appLog.ParseLevel(conf.LogLevel); ok {
		appLog.SetLevel(lvl)
	} else {
		appLog.Warn("unknown log level, using info", "log_level", conf.LogLevel)
	}

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("invalid timezone", err)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"refresh", conf.RefreshCron,
		"ics_count", len(conf.ICS),
		"caldav", conf.CalDAV != nil,
		"static_events", len(conf.Events),
		"once", flags.once,
		"snapshot", flags.snapshot,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	events, err := buildSources(conf, loc)
	if err != nil {
		appLog.Error("failed to configure event sources", err)
		os.Exit(1)
	}

	switch {
	case flags.once:
		err = runOnce(ctx, conf, loc, events, flags.month)
	case flags.snapshot:
		err = runSnapshot(ctx, conf, loc, events, flags.month)
	default:
		err = runServer(ctx, conf, loc, events)
	}
	if err != nil {
		appLog.Error("fitcal failed", err)
		os.Exit(1)
	}
	appLog.Info("fitcal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/fitcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Print the month grid to stdout and exit")
	flag.StringVar(&cfg.month, "month", "", "Month to show with -once/-snapshot (YYYY-MM, default current)")
	flag.BoolVar(&cfg.snapshot, "snapshot", false, "Capture the month page to PNG and exit")
	flag.StringVar(&cfg.hashPassword, "hash-password", "", "Print an argon2id hash for basic_auth.password and exit")

	flag.Parse()

	return cfg
}

// buildSources wires the static, ICS and CalDAV sources from config.
func buildSources(conf *config.Config, loc *time.Location) (source.Source, error) {
	static, err := source.NewStatic(conf.Events, loc)
	if err != nil {
		return nil, err
	}
	sources := []source.Source{static}

	if len(conf.ICS) > 0 {
		feeds, err := source.NewICS(ics.NewFetcher(conf.CacheDir, nil), conf.ICS, loc)
		if err != nil {
			return nil, err
		}
		sources = append(sources, feeds)
	}
	if conf.CalDAV != nil {
		dav, err := source.NewCalDAV(*conf.CalDAV, loc)
		if err != nil {
			return nil, err
		}
		sources = append(sources, dav)
	}
	return source.NewMulti(sources...), nil
}

// monthRef resolves the -month flag, defaulting to the current month.
func monthRef(month string, loc *time.Location) (time.Time, error) {
	if month == "" {
		return grid.Today(time.Now(), loc), nil
	}
	return grid.ParseMonth(month, loc)
}

func runOnce(ctx context.Context, conf *config.Config, loc *time.Location, events source.Source, month string) error {
	ref, err := monthRef(month, loc)
	if err != nil {
		return err
	}
	bounds, err := grid.Bounds(ref, conf.WeekStartDay())
	if err != nil {
		return err
	}
	from, to := bounds.Window()
	evs, err := events.Events(ctx, from, to)
	if err != nil {
		return err
	}
	m, err := grid.BuildMonthGrid(ref, evs, conf.WeekStartDay(), time.Now())
	if err != nil {
		return err
	}
	return printMonth(os.Stdout, m)
}

func runServer(ctx context.Context, conf *config.Config, loc *time.Location, events source.Source) error {
	snap := source.NewSnapshot(events)
	refresher, err := source.NewRefresher(snap, conf.RefreshCron, loc, currentWindow(loc, conf.WeekStartDay()))
	if err != nil {
		return err
	}
	refresher.Start(ctx)

	srv, err := web.NewServer(conf, snap, web.Options{})
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", conf.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", conf.Listen, err)
	}
	err = srv.Serve(ctx, ln)
	if ctx.Err() != nil {
		<-refresher.Done()
	}
	return err
}

func runSnapshot(ctx context.Context, conf *config.Config, loc *time.Location, events source.Source, month string) error {
	ref, err := monthRef(month, loc)
	if err != nil {
		return err
	}

	opts := capture.Options{
		OutputPath: conf.Snapshot.Output,
		Width:      conf.Snapshot.Width,
		Height:     conf.Snapshot.Height,
	}
	if conf.BasicAuth != nil && conf.BasicAuth.Username != "" {
		if isHashed(conf.BasicAuth.Password) {
			return errors.New("snapshot needs a plaintext basic_auth password to log in")
		}
		opts.Username = conf.BasicAuth.Username
		opts.Password = conf.BasicAuth.Password
	}

	srv, err := web.NewServer(conf, events, web.Options{})
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", conf.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", conf.Listen, err)
	}
	opts.URL = fmt.Sprintf("http://%s/calendar?month=%s", ln.Addr().String(), ref.Format("2006-01"))

	serveCtx, stop := context.WithCancel(ctx)
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(serveCtx, ln) }()

	captureErr := capture.CalendarPNG(ctx, opts)
	stop()
	if err := <-serveErr; err != nil {
		appLog.Error("snapshot server stopped with error", err)
	}
	return captureErr
}

// currentWindow refreshes the grid around the current month.
func currentWindow(loc *time.Location, weekStart time.Weekday) source.WindowFunc {
	return func(now time.Time) (time.Time, time.Time) {
		b, err := grid.Bounds(now.In(loc), weekStart)
		if err != nil {
			appLog.Error("refresh window", err, "week_start", int(weekStart))
			b, _ = grid.Bounds(now.In(loc), time.Sunday)
		}
		return b.Window()
	}
}
