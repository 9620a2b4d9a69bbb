package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { _ = os.Chdir(cwd) }()

	opts, err := Load("")
	require.NoError(t, err)
	require.Equal(t, uint(1024), opts.ReplayBufferCapacity)
	require.Equal(t, 10000, opts.TracerMaxTraces)
	require.Equal(t, MetricsProviderNoop, opts.Metrics)
}

func TestLoadFromExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tracer_max_traces: 500\nmetrics: basic\n"), 0o644))

	opts, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 500, opts.TracerMaxTraces)
	require.Equal(t, MetricsProviderBasic, opts.Metrics)
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	opts := defaultRuntimeOptions()
	opts.Metrics = "bogus"
	require.ErrorIs(t, opts.Validate(), ErrInvalidMetricsProvider)
}

func TestValidateRejectsNonPositiveMaxTraces(t *testing.T) {
	opts := defaultRuntimeOptions()
	opts.TracerMaxTraces = 0
	require.ErrorIs(t, opts.Validate(), ErrInvalidTracerMaxTraces)
}

func TestDumpRoundTripsThroughLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "streamflow.yaml")

	opts := defaultRuntimeOptions()
	opts.TracerMaxTraces = 42
	data, err := Dump(opts)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 42, loaded.TracerMaxTraces)
}
