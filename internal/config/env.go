package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment variable read by LoadEnv.
const EnvPrefix = "DQ"

// Env holds per-host operational settings, e.g. DQ_METRICS_BACKEND=prom.
type Env struct {
	MetricsBackend string `envconfig:"METRICS_BACKEND" default:"none"`
	PushgatewayURL string `envconfig:"PUSHGATEWAY_URL"`
	DatadogAddr    string `envconfig:"DATADOG_ADDR" default:"127.0.0.1:8125"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat      string `envconfig:"LOG_FORMAT" default:"text"`
	DashboardAddr  string `envconfig:"DASHBOARD_ADDR" default:":8080"`
	// StorageDSN overrides storage.dsn so credentials stay out of pipeline files.
	StorageDSN string `envconfig:"STORAGE_DSN"`
}

// LoadEnv reads Env from the process environment.
func LoadEnv() (Env, error) {
	var e Env
	if err := envconfig.Process(EnvPrefix, &e); err != nil {
		return Env{}, fmt.Errorf("read environment: %w", err)
	}
	return e, nil
}

// Apply copies environment overrides into p.
func (e Env) Apply(p *Pipeline) {
	if e.StorageDSN != "" {
		p.Storage.DSN = e.StorageDSN
	}
}
