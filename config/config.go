// Package config loads runtime-wide defaults for streamflow: buffer
// sizes, the tracer's retention bound, and which metrics provider to
// install. It follows the same "defaultConfig, then override" shape the
// teacher's own config package uses, but sources overrides from a YAML
// file and environment variables via viper instead of functional options,
// since these are process-wide knobs rather than per-call ones.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = "streamflow"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for streamflow settings.
const envPrefix = "STREAMFLOW"

// MetricsProvider selects which metrics.Provider RuntimeOptions wires up.
type MetricsProvider string

const (
	MetricsProviderNoop       MetricsProvider = "noop"
	MetricsProviderBasic      MetricsProvider = "basic"
	MetricsProviderPrometheus MetricsProvider = "prometheus"
)

// RuntimeOptions holds process-wide settings loaded by Load: buffer
// capacities, the tracer's retention bound, and which metrics.Provider to
// install. Only Metrics is consumed inside this module (by
// NewMetricsProvider); the buffer and tracer packages do not read the
// other fields, so a caller passes them on explicitly.
type RuntimeOptions struct {
	// ReplayBufferCapacity is a capacity for buffer.NewReplayBuffer.
	ReplayBufferCapacity uint `mapstructure:"replay_buffer_capacity"`

	// SubjectBufferCapacity is loaded and dumped; buffer.SubjectBuffer
	// takes no capacity.
	SubjectBufferCapacity uint `mapstructure:"subject_buffer_capacity"`

	// TracerMaxTraces is a value for tracer.Options.MaxTraces.
	TracerMaxTraces int `mapstructure:"tracer_max_traces"`

	// TracerLightweight is a value for tracer.Options.Lightweight.
	TracerLightweight bool `mapstructure:"tracer_lightweight"`

	// Metrics selects the metrics.Provider NewMetricsProvider (see
	// provider.go) constructs.
	Metrics MetricsProvider `mapstructure:"metrics"`
}

// Sentinel validation errors.
var (
	ErrInvalidTracerMaxTraces = errors.New("tracer_max_traces must be positive")
	ErrInvalidMetricsProvider = errors.New("metrics must be one of: noop, basic, prometheus")
)

// Validate performs lightweight invariant checks, mirroring the
// teacher's validateConfig.
func (o *RuntimeOptions) Validate() error {
	if o.TracerMaxTraces <= 0 {
		return ErrInvalidTracerMaxTraces
	}
	switch o.Metrics {
	case MetricsProviderNoop, MetricsProviderBasic, MetricsProviderPrometheus:
	default:
		return ErrInvalidMetricsProvider
	}
	return nil
}

// defaultRuntimeOptions centralizes default values for RuntimeOptions,
// applied before any file/env override is read.
func defaultRuntimeOptions() RuntimeOptions {
	return RuntimeOptions{
		ReplayBufferCapacity:  1024,
		SubjectBufferCapacity: 1024,
		TracerMaxTraces:       10000,
		TracerLightweight:     false,
		Metrics:               MetricsProviderNoop,
	}
}

// Load reads RuntimeOptions from file, env vars, and defaults in that
// precedence order (env overrides file overrides defaults). If
// configPath is non-empty it names an explicit file; otherwise the file
// is searched for as "streamflow.yaml" in the working directory and
// $HOME. A missing config file is not an error — defaults apply.
func Load(configPath string) (*RuntimeOptions, error) {
	v := viper.New()
	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var opts RuntimeOptions
	if err := v.Unmarshal(&opts); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &opts, nil
}

func applyDefaults(v *viper.Viper) {
	d := defaultRuntimeOptions()
	v.SetDefault("replay_buffer_capacity", d.ReplayBufferCapacity)
	v.SetDefault("subject_buffer_capacity", d.SubjectBufferCapacity)
	v.SetDefault("tracer_max_traces", d.TracerMaxTraces)
	v.SetDefault("tracer_lightweight", d.TracerLightweight)
	v.SetDefault("metrics", string(d.Metrics))
}
