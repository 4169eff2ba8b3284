package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"insurance-dq/internal/config"
	apperrors "insurance-dq/internal/errors"
	"insurance-dq/internal/logging"
	"insurance-dq/internal/metrics"
	"insurance-dq/internal/metrics/datadog"
	"insurance-dq/internal/metrics/prompush"

	// register all backends with the storage factory.
	_ "insurance-dq/internal/storage/all"
)

// main loads the pipeline config, installs a metrics backend and executes
// one run.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "", "pipeline config path (.json, .yaml or .yml); empty uses defaults")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend: pushgateway, datadog or none (overrides DQ_METRICS_BACKEND)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides DQ_PUSHGATEWAY_URL)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
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

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Error("configuration is invalid", "config", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Info("configuration is valid", "config", cfgPath)
		os.Exit(0)
	}

	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = env.MetricsBackend
	}
	gwURL := pushGatewayURLFlg
	if gwURL == "" {
		gwURL = env.PushgatewayURL
	}
	installMetrics(log, backendName, p.Job, gwURL, env.DatadogAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	start := time.Now()
	out, runErr := runPipeline(ctx, p, log)
	stop()

	if err := metrics.Flush(); err != nil {
		log.Warn("metrics flush", "err", err)
	}
	if runErr != nil {
		log.Error("run failed", "run_id", out.RunID, "kind", apperrors.Kind(runErr), "err", runErr)
		os.Exit(1)
	}
	log.Debug("completed", "run_id", out.RunID, "elapsed", time.Since(start).Truncate(time.Millisecond))
}

func installMetrics(log *slog.Logger, backendName, job, gwURL, ddAddr string) {
	switch backendName {
	case "pushgateway", "prom":
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		b, err := prompush.NewBackend(job, gwURL)
		if err != nil {
			log.Warn("metrics: prom push backend unavailable; using nop", "err", err)
			return
		}
		log.Debug("metrics: pushgateway", "url", gwURL, "job", job)
		metrics.SetBackend(b)

	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{Addr: ddAddr, GlobalTags: []string{"job:" + job}})
		if err != nil {
			log.Warn("metrics: datadog backend unavailable; using nop", "err", err)
			return
		}
		log.Debug("metrics: datadog", "addr", ddAddr)
		metrics.SetBackend(b)

	case "", "none":
		log.Debug("metrics: disabled")

	default:
		log.Warn("metrics: unknown backend; metrics disabled", "backend", backendName)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
