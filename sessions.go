package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"

	"iracingtelemetry/pkg/helper"
	"iracingtelemetry/pkg/storage"
)

func cmdList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	fs.Parse(args)

	summaries, err := storage.ListAll(dataDir())
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Printf("No sessions found in %s\n", dataDir())
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendSeparator()

	t.AppendHeader(table.Row{"ID", "Date", "Track", "Car", "Type", "Laps", "Duration"})
	for _, s := range summaries {
		t.AppendRow([]interface{}{
			shortID(s.Metadata.SessionID),
			formatTimestamp(s.Metadata.Timestamp),
			trackLabel(s.Metadata.TrackName, s.Metadata.TrackConfig),
			s.Metadata.CarName,
			s.Metadata.SessionType,
			fmt.Sprintf("%d", s.Metadata.TotalLaps),
			helper.SecondsToHoursAndMinutes(s.Duration),
		})
	}
	t.Render()
	return nil
}

func cmdInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	id := fs.String("session", "", "session id or id prefix")
	fs.Parse(args)
	if *id == "" {
		return errors.New("info: -session is required")
	}

	sess, path, err := storage.LoadByID(dataDir(), *id)
	if err != nil {
		return err
	}

	fmt.Printf("Session:  %s\n", sess.Metadata.SessionID)
	fmt.Printf("Date:     %s\n", formatTimestamp(sess.Metadata.Timestamp))
	fmt.Printf("Track:    %s\n", trackLabel(sess.Metadata.TrackName, sess.Metadata.TrackConfig))
	fmt.Printf("Car:      %s\n", sess.Metadata.CarName)
	fmt.Printf("Type:     %s\n", sess.Metadata.SessionType)
	fmt.Printf("Driver:   %s\n", sess.Metadata.DriverName)
	fmt.Printf("File:     %s\n", path)

	if len(sess.Laps) == 0 {
		fmt.Println("No laps recorded.")
		return nil
	}

	best, hasBest := sess.BestLap()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendSeparator()

	t.AppendHeader(table.Row{"Lap", "Time", "Diff", "Samples"})
	for _, lap := range sess.Laps {
		lapTime := "-"
		diff := ""
		if lap.LapTime != nil {
			lapTime = helper.SecondsToMinutes(*lap.LapTime)
			if hasBest {
				if lap.LapNumber == best.LapNumber {
					diff = "best"
				} else {
					diff = helper.SecondsToDiff(*lap.LapTime - *best.LapTime)
				}
			}
		}
		t.AppendRow([]interface{}{
			fmt.Sprintf("%d", lap.LapNumber+1),
			lapTime,
			diff,
			fmt.Sprintf("%d", len(lap.Telemetry)),
		})
	}
	t.Render()

	if hasBest {
		fmt.Printf("Best lap: %d (%s)\n", best.LapNumber+1, helper.SecondsToMinutes(*best.LapTime))
	}
	fmt.Printf("Duration: %s\n", helper.SecondsToHoursAndMinutes(sess.Duration()))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func trackLabel(name, config string) string {
	if config != "" {
		return fmt.Sprintf("%s (%s)", name, config)
	}
	return name
}

func formatTimestamp(ts string) string {
	parsed, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return parsed.Format("2006-01-02 15:04")
}
