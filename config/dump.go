package config

import "gopkg.in/yaml.v3"

// yamlOptions mirrors RuntimeOptions with yaml tags matching the
// mapstructure ones viper reads, so Dump's output is a valid input to
// Load's config file.
type yamlOptions struct {
	ReplayBufferCapacity  uint            `yaml:"replay_buffer_capacity"`
	SubjectBufferCapacity uint            `yaml:"subject_buffer_capacity"`
	TracerMaxTraces       int             `yaml:"tracer_max_traces"`
	TracerLightweight     bool            `yaml:"tracer_lightweight"`
	Metrics               MetricsProvider `yaml:"metrics"`
}

// Dump renders o as YAML, for writing an effective-config file next to a
// deployment (e.g. after Load resolves env overrides, persist the result
// for the next run to diff against).
func Dump(o RuntimeOptions) ([]byte, error) {
	return yaml.Marshal(yamlOptions{
		ReplayBufferCapacity:  o.ReplayBufferCapacity,
		SubjectBufferCapacity: o.SubjectBufferCapacity,
		TracerMaxTraces:       o.TracerMaxTraces,
		TracerLightweight:     o.TracerLightweight,
		Metrics:               o.Metrics,
	})
}
