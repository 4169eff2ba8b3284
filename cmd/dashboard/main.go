// Command dashboard serves the reporting dashboard over the tables the last
// pipeline run persisted. It reads the same config file as dqpipe so both
// agree on the storage backend and date layouts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"insurance-dq/internal/config"
	"insurance-dq/internal/dashboard"
	"insurance-dq/internal/logging"
	"insurance-dq/internal/storage"
	"insurance-dq/internal/webui"

	_ "insurance-dq/internal/storage/all"
)

func main() {
	var (
		cfgPath string
		addr    string
		origins string
	)
	flag.StringVar(&cfgPath, "config", "", "pipeline config path; empty uses defaults")
	flag.StringVar(&addr, "addr", "", "listen address (overrides DQ_DASHBOARD_ADDR)")
	flag.StringVar(&origins, "allowed-origins", "", "comma-separated CORS origins; empty allows all")
	verbose := flag.Bool("v", false, "enable debug logs")
	flag.Parse()

	env, err := config.LoadEnv()
	if err != nil {
		fatalf("%v", err)
	}
	level := env.LogLevel
	if *verbose {
		level = "debug"
	}
	log, err := logging.New(os.Stderr, level, env.LogFormat)
	if err != nil {
		fatalf("logging: %v", err)
	}
	slog.SetDefault(log)

	p, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}
	env.Apply(&p)
	if addr == "" {
		addr = env.DashboardAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := storage.New(ctx, storage.Config{
		Kind:      p.Storage.Kind,
		DSN:       p.Storage.DSN,
		Dir:       p.Storage.Dir,
		BatchSize: p.Runtime.BatchSize,
	})
	if err != nil {
		log.Error("open storage", "kind", p.Storage.Kind, "err", err)
		os.Exit(1)
	}
	defer repo.Close()

	store := dashboard.NewStore(repo, p.Input.DateLayouts, log)
	cfg := webui.Config{Addr: addr}
	if origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}
	srv := webui.NewServer(cfg, store, repo, log)

	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server", "err", err)
		os.Exit(1)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
