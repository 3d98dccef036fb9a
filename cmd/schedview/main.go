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

	"schedview/internal/capture"
	"schedview/internal/config"
	"schedview/internal/ics"
	appLog "schedview/internal/log"
	"schedview/internal/render"
	"schedview/internal/schedule"
	"schedview/internal/sessionize"
	"schedview/internal/snapshot"
	"schedview/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	envFile    string
	listen     string
	once       bool
	htmlOut    string
	icsOut     string
	capture    bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath, flags.envFile)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("schedview starting", "version", "0.1.0")
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"locale", conf.Locale,
		"refresh", conf.RefreshCron,
		"fetch_timeout_seconds", conf.FetchTimeoutSeconds,
		"once", flags.once,
		"capture", flags.capture,
	)

	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		appLog.Error("unknown timezone; using UTC", err, "timezone", conf.Timezone)
		loc = time.UTC
	}
	timeout := time.Duration(conf.FetchTimeoutSeconds) * time.Second
	store := snapshot.NewStore(sessionize.NewFetcher(conf.SourceURL, loc, timeout))

	// Single load attempt. A failure is kept as the served state.
	loadErr := store.Load(ctx)

	switch {
	case flags.once:
		err = runOnce(store.State(), conf, loc, flags)
	case flags.capture:
		err = runCapture(ctx, store, conf)
	default:
		err = runServer(ctx, store, conf, loc, timeout)
		if loadErr != nil {
			appLog.Info("served load-failure page until shutdown")
		}
	}
	if err != nil {
		appLog.Error("schedview failed", err)
		os.Exit(1)
	}
	appLog.Info("schedview exiting")
}

func runServer(ctx context.Context, store *snapshot.Store, conf *config.Config, loc *time.Location, timeout time.Duration) error {
	if err := store.StartRefresh(ctx, conf.RefreshCron, loc, timeout); err != nil {
		return err
	}
	defer store.Stop()

	srv, err := web.NewServer(conf, store)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

// runOnce writes the unfiltered schedule to the requested files and
// exits. A failed load is an error here since nothing can be written.
func runOnce(st schedule.State, conf *config.Config, loc *time.Location, flags flagConfig) error {
	view, err := st.Apply(schedule.Criteria{})
	if err != nil {
		return err
	}
	if flags.htmlOut == "" && flags.icsOut == "" {
		return errors.New("-once needs -html and/or -ics")
	}

	if flags.htmlOut != "" {
		r, err := render.NewHTMLRenderer()
		if err != nil {
			return err
		}
		p := render.Projector{Title: conf.Title, Format: render.NewFormat(conf.Locale)}
		f, err := os.Create(flags.htmlOut)
		if err != nil {
			return err
		}
		if err := r.Render(f, p.Page(view, conf.DefaultTheme, false)); err != nil {
			f.Close()
			return fmt.Errorf("render html: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		appLog.Info("wrote html", "path", flags.htmlOut, "sessions", view.Tree.Len())
	}

	if flags.icsOut != "" {
		body := ics.Export(view.Doc, view.Tree.Sessions(), ics.ExportOptions{Name: conf.Title, Timezone: loc.String()})
		if err := os.WriteFile(flags.icsOut, []byte(body), 0o644); err != nil {
			return err
		}
		appLog.Info("wrote ics", "path", flags.icsOut, "sessions", view.Tree.Len())
	}
	return nil
}

// runCapture serves the page on an ephemeral port just long enough to
// screenshot it into conf.PreviewPath.
func runCapture(ctx context.Context, store *snapshot.Store, conf *config.Config) error {
	srv, err := web.NewServer(conf, store)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}

	serveCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(serveCtx, ln) }()

	url := "http://" + ln.Addr().String() + "/"
	capErr := capture.CapturePagePNG(ctx, capture.Options{URL: url, OutputPath: conf.PreviewPath})
	cancel()
	if err := <-done; err != nil {
		appLog.Error("capture server shutdown", err)
	}
	if capErr != nil {
		return capErr
	}
	appLog.Info("wrote preview", "path", conf.PreviewPath)
	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./schedview.yaml", "Path to config file")
	flag.StringVar(&cfg.envFile, "env-file", ".env", "Optional .env file with SCHEDVIEW_* overrides")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Load once, write -html/-ics output and exit")
	flag.StringVar(&cfg.htmlOut, "html", "", "With -once: write the full schedule page here")
	flag.StringVar(&cfg.icsOut, "ics", "", "With -once: write the full schedule as iCalendar here")
	flag.BoolVar(&cfg.capture, "capture", false, "Screenshot the schedule page to preview_path and exit")

	flag.Parse()

	return cfg
}
