// Command swing tracks a swinging body from a serial accelerometer, stores
// every sample with its prediction and serves the live estimate over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/swing.report/internal/api"
	"github.com/banshee-data/swing.report/internal/config"
	"github.com/banshee-data/swing.report/internal/db"
	"github.com/banshee-data/swing.report/internal/ingest"
	"github.com/banshee-data/swing.report/internal/monitoring"
	"github.com/banshee-data/swing.report/internal/oscillation"
	"github.com/banshee-data/swing.report/internal/samplefile"
	"github.com/banshee-data/swing.report/internal/serialmux"
	"github.com/banshee-data/swing.report/internal/version"
)

var (
	devMode       = flag.Bool("dev", false, "Replay -fixture through a mock serial port instead of opening -port")
	disableSerial = flag.Bool("disable-serial", false, "Run without a serial device (API and history only)")
	fixture       = flag.String("fixture", "fixtures/swing.tsv", "Recording replayed in dev mode")
	listen        = flag.String("listen", ":8080", "Listen address")
	port          = flag.String("port", "/dev/ttyACM0", "Serial port to use (ignored in dev mode)")
	serialMode    = flag.String("serial-mode", "115200 8N1", "Serial baud rate and frame, e.g. \"9600 8E1\"")
	initCommands  = flag.String("init", "", "Comma separated commands sent to the device on start-up")
	configPath    = flag.String("config", "", "Tuning config, JSON or YAML (defaults are built in)")
	dbPath        = flag.String("db", "swing.db", "SQLite database path")
	label         = flag.String("label", "", "Label stored with the new session")
	debug         = flag.Bool("debug", false, "Log every detected peak and nadir")
	showVersion   = flag.Bool("version", false, "Print version information and exit")
)

// Dev mode replays at the board's default rate.
const devSampleInterval = 50 * time.Millisecond

func main() {
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		flag.CommandLine.Parse(os.Args[2:])
		if err := db.RunMigrateCommand(flag.Args(), *dbPath, os.Stdout); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	monitoring.SetDebug(*debug)
	log.Print(version.String())

	cfg, err := loadTrackerConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load tuning config: %v", err)
	}

	swingSerial, err := openSerial()
	if err != nil {
		log.Fatalf("failed to create serial port: %v", err)
	}
	defer swingSerial.Close()

	if err := swingSerial.Initialise(); err != nil {
		log.Fatalf("failed to initialise device: %v", err)
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	session, err := database.CreateSession(sessionLabel(*label), cfg, time.Now())
	if err != nil {
		log.Fatalf("failed to create session: %v", err)
	}
	log.Printf("recording session %s", session.ID)

	pipeline, err := ingest.NewPipeline(cfg, ingest.Options{
		SessionID: session.ID,
		Store:     database,
		NewSession: func() (string, error) {
			next, err := database.CreateSession(sessionLabel(*label), cfg, time.Now())
			if err != nil {
				return "", err
			}
			log.Printf("recording session %s", next.ID)
			return next.ID, nil
		},
	})
	if err != nil {
		log.Fatalf("failed to create pipeline: %v", err)
	}

	// Create a wait group for the HTTP server, serial monitor, and ingest routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := swingSerial.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Printf("monitor routine terminated, %d lines dropped", swingSerial.Dropped())
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := pipeline.Run(ctx, swingSerial); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("ingest routine failed: %v", err)
		}
		snap := pipeline.Snapshot()
		log.Printf("ingest routine terminated: accepted=%d rejected=%d period=%.3fs amplitude=%.3f",
			snap.Accepted, snap.Rejected, snap.State.Period, snap.State.Amplitude)
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(swingSerial, pipeline, database).ServeMux()
		swingSerial.AttachAdminRoutes(mux)
		database.AttachAdminRoutes(mux)

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			// Force close the server if graceful shutdown fails
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

func openSerial() (serialmux.SerialMuxInterface, error) {
	switch {
	case *disableSerial:
		log.Print("serial disabled")
		return serialmux.NewDisabledSerialMux(), nil
	case *devMode:
		lines, err := fixtureLines(*fixture)
		if err != nil {
			return nil, err
		}
		log.Printf("dev mode: replaying %d readings from %s", len(lines), *fixture)
		return serialmux.NewMockSerialMux(lines, devSampleInterval, true), nil
	default:
		opts, err := serialmux.ParsePortOptions(*serialMode)
		if err != nil {
			return nil, err
		}
		if *port == "" {
			return nil, errors.New("serial port is required")
		}
		log.Printf("opening %s at %s", *port, opts)
		mux, err := serialmux.NewRealSerialMux(*port, opts, splitCommands(*initCommands)...)
		if err != nil {
			return nil, err
		}
		return mux, nil
	}
}

// loadTrackerConfig merges the tuning file at path over the defaults. An
// empty path yields oscillation.DefaultConfig.
func loadTrackerConfig(path string) (oscillation.Config, error) {
	if path == "" {
		return oscillation.DefaultConfig(), nil
	}
	tuning, err := config.LoadTuningConfig(path)
	if err != nil {
		return oscillation.Config{}, err
	}
	return tuning.TrackerConfig()
}

// fixtureLines reads a recording and returns its values as bare readings so
// that the pipeline stamps them on arrival and looping never goes backwards
// in time.
func fixtureLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixtures file: %w", err)
	}
	defer f.Close()

	samples, err := samplefile.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%s contains no readings", path)
	}
	lines := make([]string, len(samples))
	for i, s := range samples {
		lines[i] = fmt.Sprintf("%.4f", s.Value)
	}
	return lines, nil
}

func splitCommands(s string) []string {
	var out []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func sessionLabel(l string) string {
	if l != "" {
		return l
	}
	host, err := os.Hostname()
	if err != nil {
		return "swing"
	}
	return "swing@" + host
}
