package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/ygrebnov/streamflow/tracer"
)

var dumpJSON = jsoniter.ConfigCompatibleWithStandardLibrary

func newDumpCommand() *cobra.Command {
	var sortBy string

	cmd := &cobra.Command{
		Use:   "dump <snapshot.json>",
		Short: "Render a tracer.Snapshot() JSON file as a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runDump(args[0], sortBy)
		},
	}
	cmd.Flags().StringVar(&sortBy, "sort", "emitted", "sort by: emitted, state")
	return cmd
}

func runDump(path, sortBy string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	var traces []tracer.ValueTrace
	if err := dumpJSON.Unmarshal(data, &traces); err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}

	sortTraces(traces, sortBy)
	renderTraces(traces)
	return nil
}

func sortTraces(traces []tracer.ValueTrace, by string) {
	switch by {
	case "state":
		sort.Slice(traces, func(i, j int) bool { return traces[i].State < traces[j].State })
	default:
		sort.Slice(traces, func(i, j int) bool { return traces[i].EmittedAt.Before(traces[j].EmittedAt) })
	}
}

func renderTraces(traces []tracer.ValueTrace) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(os.Stdout)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Value ID", "Stream", "State", "Steps", "Duration", "Reason"})

	var delivered, dropped int
	for _, v := range traces {
		switch v.State {
		case "delivered":
			delivered++
		case "dropped":
			dropped++
		}

		reason := v.TerminalReason
		if reason == "" {
			reason = v.DroppedReason
		}

		dur := "-"
		if v.TotalDuration > 0 {
			dur = time.Duration(v.TotalDuration).String()
		}

		tbl.AppendRow(table.Row{
			v.ValueID, v.StreamName, stateColor(v.State).Sprint(v.State),
			len(v.OperatorSteps), dur, reason,
		})
	}

	tbl.AppendFooter(table.Row{
		"", "", fmt.Sprintf("%d traces", len(traces)),
		"", "", fmt.Sprintf("%d delivered, %d dropped", delivered, dropped),
	})
	tbl.Render()

	if len(traces) > 0 {
		oldest := traces[0].EmittedAt
		for _, v := range traces[1:] {
			if v.EmittedAt.Before(oldest) {
				oldest = v.EmittedAt
			}
		}
		fmt.Printf("oldest trace emitted %s\n", humanize.Time(oldest))
	}
}

func stateColor(state string) *color.Color {
	switch state {
	case "delivered":
		return color.New(color.FgGreen)
	case "errored", "dropped":
		return color.New(color.FgRed)
	case "filtered", "collapsed":
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}
