package main

import (
	"flag"
	"fmt"

	"github.com/pkg/errors"

	"iracingtelemetry/pkg/exporter"
	"iracingtelemetry/pkg/storage"
)

func cmdExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	id := fs.String("session", "", "session id or id prefix")
	lapSpec := fs.String("laps", "", "laps to export, 1-based (e.g. \"3\" or \"2,5\" or \"2-5\")")
	all := fs.Bool("all", false, "export every lap of the session as one file")
	concat := fs.Bool("concat", false, "concatenate the selected laps instead of aligning them")
	fs.Parse(args)
	if *id == "" {
		return errors.New("export: -session is required")
	}

	sess, _, err := storage.LoadByID(dataDir(), *id)
	if err != nil {
		return err
	}

	exp := exporter.New(exportDir())

	if *all {
		path, err := exp.ExportSession(sess)
		if err != nil {
			return err
		}
		fmt.Printf("Exported session to %s\n", path)
		return nil
	}

	if *lapSpec == "" {
		return errors.New("export: -laps or -all is required")
	}
	laps, err := exporter.ParseLapSpec(*lapSpec)
	if err != nil {
		return err
	}

	var path string
	switch {
	case len(laps) == 1:
		path, err = exp.ExportLap(sess, laps[0])
	case *concat:
		path, err = exp.ExportLaps(sess, laps)
	default:
		path, err = exp.ExportComparison(sess, laps)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Exported to %s\n", path)
	return nil
}
