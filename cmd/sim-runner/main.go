// Command sim-runner is a headless driver for the FinCrime: The Desk
// simulation core: it opens a store, builds an engine with the five
// reference subsystems registered, runs a fixed number of ticks, and
// prints a run summary. Grounded on original_source/tools/src/main.rs,
// translated into the teacher's flag-based cmd/<tool>/main.go shape
// (see tools/archive_player/cmd/archive_player/main.go) rather than the
// original's env_logger + anyhow::Result plumbing.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/archive"
	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simclock"
	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simconfig"
	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simengine"
	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simevent"
	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simlog"
	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simrng"
	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simstore"
	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/subsystems/complaintsub"
	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/subsystems/customersub"
	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/subsystems/macrosub"
	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/subsystems/pricingsub"
	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/subsystems/transactionsub"
	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/telemetry"
)

func main() {
	defaults, err := simconfig.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	seed := flag.Uint64("seed", defaults.Seed, "master RNG seed for this run")
	ticks := flag.Uint64("ticks", defaults.Ticks, "number of ticks to run")
	dbPath := flag.String("db", defaults.DBPath, "sqlite path, or :memory: for an in-memory run")
	dataDir := flag.String("data-dir", defaults.DataDir, "directory for archived run bundles")
	archiveRun := flag.Bool("archive", defaults.Archive, "write a compressed archive bundle for this run")
	telemetryAddr := flag.String("telemetry-addr", defaults.TelemetryAddr, "if set, serve live event telemetry over websocket on this address (e.g. :8090)")
	logLevel := flag.String("log-level", defaults.LogLevel, "debug|info|warn|error")
	resumeRunID := flag.String("run-id", "", "resume an existing run id from its latest snapshot instead of starting a fresh run (spec §4.5)")
	flag.Parse()

	log := simlog.New(os.Stdout, parseLogLevel(*logLevel))

	fmt.Println("FinCrime: The Desk -- sim-runner")
	fmt.Printf("  seed:      %d\n", *seed)
	fmt.Printf("  ticks:     %d\n", *ticks)
	fmt.Printf("  db:        %s\n", *dbPath)
	fmt.Printf("  data-dir:  %s\n", *dataDir)
	fmt.Println()

	store, err := openStore(*dbPath)
	if err != nil {
		log.Error("open store failed", simlog.Err(err))
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		log.Error("migrate failed", simlog.Err(err))
		os.Exit(1)
	}

	runID, resumeSnapshot, err := resolveRun(store, *resumeRunID, *seed)
	if err != nil {
		log.Error("resolve run failed", simlog.Err(err))
		os.Exit(1)
	}

	var clock *simclock.Clock
	if resumeSnapshot != nil {
		c, err := simclock.FromSnapshot(resumeSnapshot.Clock)
		if err != nil {
			log.Error("restore clock from snapshot failed", simlog.Err(err))
			os.Exit(1)
		}
		clock = c
		log.Info("resuming run from snapshot", simlog.String("run_id", runID), simlog.Uint64("tick", clock.CurrentTick))
	} else {
		clock = simclock.New(runID)
	}
	clock.Resume()

	bank := simrng.NewBank(*seed)
	eng := simengine.New(runID, store, clock, bank, log)

	eng.AddSubsystem(simrng.SlotMacro, macrosub.New())
	eng.AddSubsystem(simrng.SlotCustomer, customersub.New(runID, store))
	eng.AddSubsystem(simrng.SlotTransaction, transactionsub.New(runID, store))
	eng.AddSubsystem(simrng.SlotComplaint, complaintsub.New(runID, store))
	eng.AddSubsystem(simrng.SlotPricing, pricingsub.New(runID, store))

	if resumeSnapshot != nil {
		if err := eng.LoadSnapshot(*resumeSnapshot); err != nil {
			log.Error("load snapshot failed", simlog.Err(err))
			os.Exit(1)
		}
	}

	var eventSinks []simengine.EventSink

	var writer *archive.Writer
	if *archiveRun {
		w, manifest, err := archive.NewWriter(*dataDir, runID, *seed, simengine.Version, time.Now)
		if err != nil {
			log.Error("open archive writer failed", simlog.Err(err))
			os.Exit(1)
		}
		writer = w
		defer writer.Close()
		log.Info("archiving run", simlog.String("dir", writer.Directory()), simlog.String("events_path", manifest.EventsPath))
		sink := archiveSink{writer: writer}
		eventSinks = append(eventSinks, sink)
		eng.SetSnapshotSink(sink)
	}

	if *telemetryAddr != "" {
		stream := telemetry.NewStream(telemetry.Config{Retain: 256})
		handler := telemetry.NewHandler(stream, log).WithSubscribeLimit(time.Second, 20)
		mux := http.NewServeMux()
		mux.Handle("/telemetry", handler)
		server := &http.Server{Addr: *telemetryAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("telemetry server failed", simlog.Err(err))
			}
		}()
		defer server.Close()
		log.Info("serving telemetry", simlog.String("addr", *telemetryAddr), simlog.String("path", "/telemetry"))
		eventSinks = append(eventSinks, stream)
	}

	eng.SetEventSink(fanOutSink(eventSinks))

	advanced, err := eng.RunTicks(*ticks)
	if err != nil {
		log.Error("run failed", simlog.Uint64("advanced", advanced), simlog.Err(err))
		os.Exit(1)
	}

	printSummary(runID, advanced, *ticks, store)
}

// archiveSink adapts archive.Writer to simengine.EventSink so every
// published event is mirrored into the compressed bundle as the run plays.
type archiveSink struct {
	writer *archive.Writer
}

func (a archiveSink) Publish(tick uint64, subsystemName string, event simevent.Event) {
	payload, err := simevent.Encode(event)
	if err != nil {
		return
	}
	_ = a.writer.AppendEvent(tick, subsystemName, event.Type(), payload)
}

func (a archiveSink) PublishSnapshot(tick uint64, blob []byte) {
	_ = a.writer.AppendSnapshot(tick, blob)
}

// fanOutSink publishes every event to each of its sinks in order, so the
// archive writer and the live telemetry stream can both observe a run
// without the engine knowing either one exists.
type fanOutSink []simengine.EventSink

func (f fanOutSink) Publish(tick uint64, subsystemName string, event simevent.Event) {
	for _, sink := range f {
		sink.Publish(tick, subsystemName, event)
	}
}

func parseLogLevel(raw string) simlog.Level {
	switch raw {
	case "debug":
		return simlog.DebugLevel
	case "warn":
		return simlog.WarnLevel
	case "error":
		return simlog.ErrorLevel
	default:
		return simlog.InfoLevel
	}
}

func openStore(path string) (*simstore.Store, error) {
	if path == ":memory:" {
		return simstore.OpenInMemory()
	}
	return simstore.Open(path)
}

// anyTick is passed to LatestSnapshotAtOrBefore to mean "the most recent
// snapshot the run has, whatever tick it landed on."
const anyTick = ^uint64(0)

// resolveRun either starts a fresh run (resumeRunID empty) or resumes an
// existing one from its latest snapshot (spec §4.5). A resumed run with no
// snapshot yet simply restarts from tick zero, the same as a fresh run.
func resolveRun(store *simstore.Store, resumeRunID string, seed uint64) (string, *simengine.Snapshot, error) {
	if resumeRunID == "" {
		runID := fmt.Sprintf("run-%d-%d", seed, time.Now().Unix())
		if err := store.InsertRun(simstore.Run{
			RunID: runID, Seed: seed, Version: simengine.Version, StartedAt: time.Now().Unix(),
		}); err != nil {
			return "", nil, err
		}
		return runID, nil, nil
	}

	if _, err := store.LoadRun(resumeRunID); err != nil {
		return "", nil, fmt.Errorf("resume run %s: %w", resumeRunID, err)
	}
	_, blob, found, err := store.LatestSnapshotAtOrBefore(resumeRunID, anyTick)
	if err != nil {
		return "", nil, err
	}
	if !found {
		return resumeRunID, nil, nil
	}
	snap, err := simengine.UnmarshalSnapshot(blob)
	if err != nil {
		return "", nil, err
	}
	return resumeRunID, &snap, nil
}

func printSummary(runID string, advanced, requested uint64, store *simstore.Store) {
	stats, err := store.Stats(runID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "stats error:", err)
		return
	}

	fmt.Println("=== RUN SUMMARY ===")
	fmt.Printf("  run_id:           %s\n", runID)
	fmt.Printf("  ticks requested:  %d\n", requested)
	fmt.Printf("  ticks advanced:   %d\n", advanced)
	fmt.Printf("  active customers: %d\n", stats.ActiveCustomers)
	fmt.Printf("  churned:          %d\n", stats.ChurnedCustomers)
	fmt.Printf("  total events:     %d\n", stats.TotalEvents)
	fmt.Printf("  open complaints:  %d\n", stats.OpenComplaints)
	fmt.Printf("  closed complaints:%d\n", stats.ClosedComplaints)
	fmt.Printf("  sla breaches:     %d\n", stats.SLABreaches)
}
