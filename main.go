package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"iracingtelemetry/pkg/capture"
	"iracingtelemetry/pkg/caster"
	"iracingtelemetry/pkg/exporter"
	"iracingtelemetry/pkg/helper"
	"iracingtelemetry/pkg/hotlaps"
	"iracingtelemetry/pkg/notification"
	"iracingtelemetry/pkg/pubsub"
	"iracingtelemetry/pkg/storage"
	"iracingtelemetry/pkg/telemetry"
	"iracingtelemetry/pkg/webserver"
)

const defaultBridgeURL = "ws://localhost:8001/telemetry"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "capture":
		err = cmdCapture(os.Args[2:])
	case "list":
		err = cmdList(os.Args[2:])
	case "info":
		err = cmdInfo(os.Args[2:])
	case "export":
		err = cmdExport(os.Args[2:])
	case "hotlaps":
		err = cmdHotlaps(os.Args[2:])
	case "serve":
		err = cmdServe(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: iracingtelemetry <command> [flags]

commands:
  capture   capture live telemetry into session records
  list      list all captured sessions
  info      show detailed information about a session
  export    export lap telemetry to CSV
  hotlaps   show the best-lap leaderboard
  serve     run the HTTP query API over captured sessions`)
}

func dataDir() string {
	if v := os.Getenv("TELEMETRY_DATA_DIR"); v != "" {
		return v
	}
	return storage.DefaultDataDir
}

func exportDir() string {
	if v := os.Getenv("TELEMETRY_EXPORT_DIR"); v != "" {
		return v
	}
	return exporter.DefaultExportDir
}

func cmdCapture(args []string) error {
	fs := flag.NewFlagSet("capture", flag.ExitOnError)
	mock := fs.Bool("mock", false, "use the synthetic telemetry provider")
	rate := fs.Int("rate", capture.DefaultPollRate, "poll rate in Hz")
	fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := pubsub.New[string]()
	store := storage.NewStore(dataDir())
	exp := exporter.New(exportDir())

	var leaderboard *hotlaps.Manager
	if lb, err := hotlaps.NewManager(os.Getenv("HOTLAPS_DB")); err != nil {
		log.Printf("Warning: hotlaps leaderboard disabled: %s", err)
	} else {
		leaderboard = lb
		defer lb.Close()
	}

	if token := os.Getenv("TELEGRAM_TOKEN"); token != "" {
		chatID, _ := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64)
		if chatID == 0 {
			log.Printf("Warning: TELEGRAM_CHAT_ID not set, notifications disabled")
		} else if nm, err := notification.NewManager(ctx, token, chatID, events); err != nil {
			log.Printf("Warning: notifications disabled: %s", err)
		} else {
			go nm.Start()
		}
	}

	go printCaptureEvents(ctx, events)

	var provider telemetry.Provider
	if *mock {
		provider = newMockProvider()
	} else {
		url := os.Getenv("TELEMETRY_BRIDGE_URL")
		if url == "" {
			url = defaultBridgeURL
		}
		bp := telemetry.NewBridgeProvider(url)
		bp.Start(ctx)
		provider = bp
	}

	m := capture.NewManager(provider, store, exp, leaderboard, events, *rate)
	return m.Run(ctx)
}

// printCaptureEvents mirrors segmenter events onto the console.
func printCaptureEvents(ctx context.Context, events *pubsub.PubSub[string]) {
	startedCaster := caster.JSONChannelCaster[capture.SessionStartedEvent]{}
	lapCaster := caster.JSONChannelCaster[capture.LapCompletedEvent]{}

	startedChan := events.Subscribe(capture.TopicSessionStarted)
	lapChan := events.Subscribe(capture.TopicLapCompleted)
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-startedChan:
			ev, err := startedCaster.From(payload)
			if err != nil {
				continue
			}
			fmt.Printf("\nSession started: %s", ev.TrackName)
			if ev.TrackConfig != "" {
				fmt.Printf(" (%s)", ev.TrackConfig)
			}
			fmt.Printf(" | %s | %s | %s\n", ev.CarName, ev.SessionType, ev.SessionID[:8])
		case payload := <-lapChan:
			ev, err := lapCaster.From(payload)
			if err != nil {
				continue
			}
			if ev.LapTime == nil {
				fmt.Printf("\nLap %d closed without a valid time\n", ev.LapNumber+1)
				continue
			}
			suffix := ""
			if ev.NewBest {
				suffix = " NEW BEST"
			} else if ev.BestTime > 0 {
				suffix = " " + helper.SecondsToDiff(*ev.LapTime-ev.BestTime)
			}
			fmt.Printf("\nLap %d completed: %.3fs%s\n", ev.LapNumber+1, *ev.LapTime, suffix)
		}
	}
}

func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	fs.Parse(args)

	webserver.NewManager(dataDir()).Serve()
	return nil
}
