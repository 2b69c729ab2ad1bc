// Command facetrackd runs the face tracking service: it consumes a
// detection source (a recorded log or the synthetic generator), feeds it
// through the track manager, and serves the HTTP API, live websocket
// stream and debug charts.
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sightline-data/facetrack/internal/api"
	"github.com/sightline-data/facetrack/internal/config"
	"github.com/sightline-data/facetrack/internal/detect"
	"github.com/sightline-data/facetrack/internal/live"
	"github.com/sightline-data/facetrack/internal/monitor"
	"github.com/sightline-data/facetrack/internal/pipeline"
	"github.com/sightline-data/facetrack/internal/storage/sqlite"
	"github.com/sightline-data/facetrack/internal/track"
)

var (
	listen        = flag.String("listen", ":8080", "HTTP listen address")
	dbFile        = flag.String("db", "facetrack.db", "SQLite database path (empty disables storage)")
	configPath    = flag.String("config", "", "tuning config JSON (defaults to built-in values)")
	source        = flag.String("source", "synthetic", "detection source: 'synthetic' or a .jsonl log path")
	seed          = flag.Int64("seed", 1, "seed for the synthetic source")
	frames        = flag.Int("frames", 0, "stop after this many source frames (0 = unbounded/EOF)")
	frameRate     = flag.Float64("rate", 0, "pace source frames at this rate per second (0 = as fast as possible)")
	migrationsDir = flag.String("migrations", "migrations", "schema migrations directory (empty skips migration)")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("listen address is required")
	}

	tc := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		tc, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	mgr, err := track.NewManager(track.ManagerConfigFromTuning(tc))
	if err != nil {
		log.Fatalf("invalid tracker configuration: %v", err)
	}

	var store *sqlite.Store
	if *dbFile != "" {
		store, err = sqlite.Open(*dbFile)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer store.Close()

		if *migrationsDir != "" {
			if _, statErr := os.Stat(*migrationsDir); statErr == nil {
				if err := store.MigrateUp(*migrationsDir); err != nil {
					log.Fatalf("failed to migrate database: %v", err)
				}
			}
		}
	}

	src, sourceName, err := openSource()
	if err != nil {
		log.Fatalf("failed to open source: %v", err)
	}
	defer src.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := live.NewHub()
	pub := live.NewPublisher(hub)

	p := pipeline.New(mgr, src, sourceName, tc)
	p.Store = store
	p.Publisher = pub

	srv := &api.Server{Manager: mgr, Store: store, Hub: hub, RunID: p.RunID}
	charts := &monitor.Charts{Manager: mgr}

	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	charts.RegisterRoutes(mux)

	httpServer := &http.Server{Addr: *listen, Handler: mux}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("listening on %s", *listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
			stop()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("pipeline error: %v", err)
		}
		log.Printf("pipeline done: %d frames", p.Frames())
	}()

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}

	wg.Wait()
}

// openSource builds the configured detection source, applying the
// -frames cap and -rate pacing.
func openSource() (detect.Source, string, error) {
	var src detect.Source
	name := *source
	if *source == "synthetic" {
		gen := detect.NewSyntheticSource(*seed)
		gen.FrameCount = *frames
		src = gen
	} else {
		jsonl, err := detect.OpenJSONL(*source)
		if err != nil {
			return nil, "", err
		}
		src = jsonl
		if *frames > 0 {
			src = &cappedSource{Source: src, limit: *frames}
		}
	}
	if *frameRate > 0 {
		src = &pacedSource{Source: src, interval: time.Duration(float64(time.Second) / *frameRate)}
	}
	return src, name, nil
}

// cappedSource stops a source after a fixed number of frames.
type cappedSource struct {
	detect.Source
	limit int
	count int
}

func (s *cappedSource) Next(ctx context.Context) (detect.Frame, error) {
	if s.count >= s.limit {
		return detect.Frame{}, io.EOF
	}
	frame, err := s.Source.Next(ctx)
	if err == nil {
		s.count++
	}
	return frame, err
}

// pacedSource throttles a source to a fixed frame rate.
type pacedSource struct {
	detect.Source
	interval time.Duration
	last     time.Time
}

func (s *pacedSource) Next(ctx context.Context) (detect.Frame, error) {
	if !s.last.IsZero() {
		wait := s.interval - time.Since(s.last)
		if wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return detect.Frame{}, ctx.Err()
			}
		}
	}
	s.last = time.Now()
	return s.Source.Next(ctx)
}
