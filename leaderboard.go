package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	"iracingtelemetry/pkg/helper"
	"iracingtelemetry/pkg/hotlaps"
)

func cmdHotlaps(args []string) error {
	fs := flag.NewFlagSet("hotlaps", flag.ExitOnError)
	track := fs.String("track", "", "filter by track name")
	limit := fs.Int("limit", 20, "maximum number of entries to show")
	fs.Parse(args)

	lb, err := hotlaps.NewManager(os.Getenv("HOTLAPS_DB"))
	if err != nil {
		return err
	}
	defer lb.Close()

	entries, err := lb.Top(*track, *limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No hotlaps recorded yet.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendSeparator()

	t.AppendHeader(table.Row{"#", "Driver", "Track", "Car", "Time", "Session"})
	for idx, e := range entries {
		t.AppendRow([]interface{}{
			fmt.Sprintf("%d", idx+1),
			helper.GetDriverCodeName(e.Driver),
			trackLabel(e.Track, e.Config),
			e.Car,
			helper.SecondsToMinutes(e.LapTime),
			shortID(e.SessionID),
		})
	}
	t.Render()
	return nil
}
