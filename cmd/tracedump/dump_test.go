package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ygrebnov/streamflow/tracer"
)

func TestSortTracesByEmitted(t *testing.T) {
	now := time.Now()
	traces := []tracer.ValueTrace{
		{ValueID: "b", EmittedAt: now.Add(time.Second)},
		{ValueID: "a", EmittedAt: now},
	}
	sortTraces(traces, "emitted")
	require.Equal(t, "a", traces[0].ValueID)
}

func TestSortTracesByState(t *testing.T) {
	traces := []tracer.ValueTrace{
		{ValueID: "b", State: "filtered"},
		{ValueID: "a", State: "delivered"},
	}
	sortTraces(traces, "state")
	require.Equal(t, "a", traces[0].ValueID)
}

func TestRunDumpReadsSnapshot(t *testing.T) {
	tr := tracer.New(tracer.Options{})
	id := tr.StartTrace("s", "source", "sub", 1)
	tr.MarkDelivered(id)

	data, err := tr.Snapshot()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	require.NoError(t, runDump(path, "emitted"))
}
