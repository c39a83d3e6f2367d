// Command homeostat runs the homeostatic decision core against a
// simulated body. Hardware backends implement the interfaces in
// internal/body and swap in here.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"

	"github.com/fieldmind/homeostat/internal/api"
	"github.com/fieldmind/homeostat/internal/behavior"
	"github.com/fieldmind/homeostat/internal/body"
	"github.com/fieldmind/homeostat/internal/config"
	"github.com/fieldmind/homeostat/internal/damage"
	"github.com/fieldmind/homeostat/internal/engine"
	"github.com/fieldmind/homeostat/internal/persistence"
	"github.com/fieldmind/homeostat/internal/physio"
	"github.com/fieldmind/homeostat/internal/sense"
	"github.com/fieldmind/homeostat/internal/telemetry"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config overriding the embedded defaults")
		dbPath     = flag.String("db", "data/homeostat.db", "SQLite archive path")
		maxCycles  = flag.Uint64("cycles", 0, "stop after N cycles (0 = run until a need is exhausted)")
		csvDir     = flag.String("csv", "", "override the telemetry CSV directory")
		apiPort    = flag.Int("port", -1, "override the HTTP API port (-1 = from config, 0 = disabled)")
		seed       = flag.Int64("seed", 0, "override the simulated body seed (0 = from config)")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	// Structured text on a terminal, JSON when piped.
	var handler slog.Handler
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	if *seed != 0 {
		cfg.Body.Seed = *seed
	}
	if *csvDir != "" {
		cfg.Telemetry.OutputDir = *csvDir
	}
	if *apiPort >= 0 {
		cfg.API.Port = *apiPort
	}

	// ── Archive ──────────────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(*dbPath), 0755)
	db, err := persistence.Open(*dbPath)
	if err != nil {
		slog.Error("failed to open archive", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	runID := uuid.NewString()
	if err := db.InsertRun(runID, cfg); err != nil {
		slog.Error("failed to register run", "error", err)
		os.Exit(1)
	}
	slog.Info("run registered", "id", runID, "db", *dbPath)

	// ── Telemetry ────────────────────────────────────────────────────
	out, err := telemetry.NewOutputManager(cfg.Telemetry.OutputDir)
	if err != nil {
		slog.Error("failed to open telemetry output", "error", err)
		os.Exit(1)
	}
	defer out.Close()

	archiver := persistence.NewArchiver(db, runID, cfg.Telemetry.FlushEvery)
	recorders := []engine.Recorder{archiver}
	if out != nil {
		recorders = append(recorders, out)
	}

	// ── Body ─────────────────────────────────────────────────────────
	sim := body.NewSimBody(
		cfg.Body.Seed,
		cfg.Body.NoiseFrequency,
		cfg.Model.MaxDist,
		time.Duration(cfg.Body.FlashMs)*time.Millisecond,
	)
	if status, err := sim.Status(); err == nil {
		slog.Info("battery",
			"charge", fmt.Sprintf("%d%%", status.ChargePercent),
			"voltage_mv", status.Voltage,
			"current_ma", status.CurrentMA,
		)
	}

	// ── Decision core ────────────────────────────────────────────────
	state := physio.NewState(physio.Params{
		EnergyDecay:   cfg.Model.EnergyDecay,
		TegumentDecay: cfg.Model.TegumentDecay,
		EnergyCue:     cfg.Model.EnergyCue,
		TegumentCue:   cfg.Model.TegumentCue,
	})
	window := sense.NewWindow(cfg.Model.MinDist, cfg.Model.MaxDist)
	detector := damage.NewDetector(damage.Config{
		MinDist:            cfg.Model.MinDist,
		MaxDist:            cfg.Model.MaxDist,
		PeriodUnits:        cfg.Model.PeriodUnits,
		SpeedDiffFraction:  cfg.Damage.SpeedDiffFraction,
		SpeedMeanFraction:  cfg.Damage.SpeedMeanFraction,
		ChannelSpeedMin:    cfg.Damage.ChannelSpeedMin,
		BodyRadius:         cfg.Damage.BodyRadiusCM,
		SpreadFraction:     cfg.Damage.SpreadFraction,
		SymmetricAdjacency: cfg.Damage.SymmetricAdjacency,
	})
	dispatcher := behavior.NewDispatcher(cfg.Behavior)

	loop := engine.NewLoop(engine.Options{
		State:        state,
		Window:       window,
		Detector:     detector,
		Dispatcher:   dispatcher,
		Sensing:      sim,
		Actuation:    sim,
		Feedback:     sim,
		Recorders:    recorders,
		Period:       time.Duration(cfg.Model.CyclePeriodMs) * time.Millisecond,
		DamageFactor: cfg.Model.DamageFactor,
		DiagEvery:    cfg.Model.DiagEvery,
		MaxCycles:    *maxCycles,
	})

	// ── HTTP API ─────────────────────────────────────────────────────
	apiServer := &api.Server{
		Loop:    loop,
		DB:      db,
		Battery: sim,
		RunID:   runID,
		Port:    cfg.API.Port,
	}
	apiServer.Start()

	// ── Signals ──────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, stopping at next cycle boundary", "signal", sig)
		loop.Stop()
	}()

	// ── Run ──────────────────────────────────────────────────────────
	result := loop.Run()

	if err := archiver.Flush(); err != nil {
		slog.Warn("final archive flush failed", "error", err)
	}
	outcome := "stopped"
	if result.Exhausted {
		outcome = "exhausted:" + fmt.Sprint(result.Needs)
	}
	if err := db.FinishRun(runID, result.Cycles, outcome); err != nil {
		slog.Warn("failed to finalize run", "error", err)
	}

	fmt.Printf("Run %s finished: %s cycles over %s (%s).\n",
		runID,
		humanize.Comma(int64(result.Cycles)),
		result.Elapsed.Round(time.Millisecond),
		outcome,
	)
}
