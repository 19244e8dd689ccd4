package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"daycount/internal/catalog"
	"daycount/internal/config"
	"daycount/internal/countdown"
	applog "daycount/internal/log"
	"daycount/internal/model"
	"daycount/internal/store"
	"daycount/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	debug      bool
}

func main() {
	applog.Info("daycountd starting", "version", "0.1.0")

	flags := parseFlags()
	if flags.debug {
		applog.SetLevel(applog.LevelDebug)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		applog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides the config file if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	applog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"store_path", conf.StorePath,
		"refresh", conf.RefreshCron,
		"milestone_baseline", conf.Milestones.BaselineYear,
		"once", flags.once,
	)

	st, err := store.Open(conf.StorePath)
	if err != nil {
		applog.Error("failed to open event store", err, "store_path", conf.StorePath)
		os.Exit(1)
	}
	defer st.Close()

	asm := countdown.New(st, catalog.Default(), conf.Milestones)

	if flags.once {
		if err := runOnce(context.Background(), asm, conf.Timezone); err != nil {
			applog.Error("one-shot run failed", err)
			os.Exit(1)
		}
		return
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		applog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	srv := web.NewServer(conf, asm)

	// Rebuild the countdown cache at the daily rollover so the first
	// request of a new day is served from a warm cache instead of paying
	// the lunar forward search.
	sched := cron.New()
	if _, err := sched.AddFunc(conf.RefreshCron, func() {
		applog.Debug("refresh tick, rebuilding countdown cache")
		srv.Refresh(ctx)
	}); err != nil {
		applog.Error("invalid refresh cron expression", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	httpSrv := &http.Server{
		Addr:    conf.Listen,
		Handler: srv.Handler(),
	}

	go func() {
		applog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Error("HTTP server failed", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		applog.Error("HTTP shutdown failed", err)
	}
	applog.Info("daycountd exiting")
}

// runOnce assembles every category once and prints the result as JSON to
// stdout, then exits. Useful for cron jobs and debugging without the HTTP
// surface.
func runOnce(ctx context.Context, asm *countdown.Assembler, timezone string) error {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.Local
	}
	now := time.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	out := make(map[model.Category][]model.Countdown)
	for _, category := range []model.Category{
		model.CategoryAnniversaries,
		model.CategoryBirthdays,
		model.CategoryHolidays,
	} {
		records, err := asm.Assemble(ctx, category, today)
		if err != nil {
			return err
		}
		out[category] = records
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Assemble all categories once, print JSON and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
