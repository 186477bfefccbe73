// rayos-attention is the attention pipeline daemon: it listens for gaze
// samples over UDP, runs fixation detection, cone casting, scoring and
// resolution, publishes resolved focus hypotheses to the scheduler
// intent queue, and serves the /api/attention HTTP surface.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/NoodleSploder/RayOS-sub005/internal/api"
	"github.com/NoodleSploder/RayOS-sub005/internal/attention/pipeline"
	"github.com/NoodleSploder/RayOS-sub005/internal/config"
	"github.com/NoodleSploder/RayOS-sub005/internal/gaze/gazenet"
	"github.com/NoodleSploder/RayOS-sub005/internal/intentdb"
	"github.com/NoodleSploder/RayOS-sub005/internal/scene"
	"github.com/NoodleSploder/RayOS-sub005/internal/sched"
)

var (
	listen        = flag.String("listen", ":8089", "HTTP listen address")
	udpAddr       = flag.String("udp-addr", fmt.Sprintf(":%d", gazenet.DefaultPort), "UDP address for gaze sample datagrams")
	sensorID      = flag.String("sensor-id", "gaze0", "sensor identifier")
	dbFile        = flag.String("db", "intent_data.db", "path to the SQLite intent database")
	migrationsDir = flag.String("migrations", "db/migrations", "path to the migration SQL files")
	configFile    = flag.String("config", "", "tuning config JSON (default: built-in defaults)")
	sceneFile     = flag.String("scene", "", "scene layout JSON (default: built-in demo layout)")
	intentSize    = flag.Int("intent-queue", 64, "scheduler intent queue capacity")
	logIntents    = flag.Bool("log-intents", true, "drain and log published intents (stand-in scheduler)")
)

// sceneObjectFile is the on-disk layout schema: a flat list of objects.
type sceneObjectFile struct {
	Objects []scene.Object `json:"objects"`
}

func loadScene(path string) (*scene.Scene, error) {
	sc := scene.NewScene()

	var objs []scene.Object
	if path == "" {
		objs = demoLayout()
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read scene file: %w", err)
		}
		var f sceneObjectFile
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse scene file: %w", err)
		}
		objs = f.Objects
	}

	for _, o := range objs {
		if err := sc.Upsert(o); err != nil {
			return nil, fmt.Errorf("scene object %q: %w", o.ID, err)
		}
	}
	sc.Commit()
	return sc, nil
}

// demoLayout mirrors a typical desktop split: two side panels, a top
// bar, a bottom panel, and a large central area.
func demoLayout() []scene.Object {
	return []scene.Object{
		{ID: "left-panel", MinX: 0.0, MinY: 0.1, MaxX: 0.25, MaxY: 0.9, Depth: 1.0, Salience: 0.6},
		{ID: "right-panel", MinX: 0.75, MinY: 0.1, MaxX: 1.0, MaxY: 0.9, Depth: 1.0, Salience: 0.6},
		{ID: "top-bar", MinX: 0.0, MinY: 0.0, MaxX: 1.0, MaxY: 0.08, Depth: 0.8, Salience: 0.4},
		{ID: "bottom-panel", MinX: 0.0, MinY: 0.92, MaxX: 1.0, MaxY: 1.0, Depth: 0.8, Salience: 0.4},
		{ID: "center-area", MinX: 0.28, MinY: 0.12, MaxX: 0.72, MaxY: 0.88, Depth: 0.6, Salience: 0.9},
	}
}

func loadConfig() (*config.Store, error) {
	if *configFile == "" {
		if cfg, err := config.LoadTuningConfig(config.DefaultConfigPath); err == nil {
			return config.NewStore(cfg), nil
		}
		// No defaults file next to the binary; accessor defaults apply.
		return config.NewStore(config.EmptyTuningConfig()), nil
	}
	cfg, err := config.LoadTuningConfig(*configFile)
	if err != nil {
		return nil, err
	}
	return config.NewStore(cfg), nil
}

// drainIntents consumes the scheduler queue and logs each envelope. The
// real System 2 scheduler replaces this consumer.
func drainIntents(ctx context.Context, queue *sched.IntentQueue) {
	for {
		env, err := queue.Dequeue(ctx)
		if err != nil {
			return
		}
		log.Printf("intent %s: focus %s (%s) p=%.2f gen=%d",
			env.ID, env.Hypothesis.ObjectID, env.Hypothesis.Region,
			env.Hypothesis.Probability, env.Hypothesis.Generation)
	}
}

func main() {
	flag.Parse()

	cfgStore, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load tuning config: %v", err)
	}

	sc, err := loadScene(*sceneFile)
	if err != nil {
		log.Fatalf("Failed to load scene: %v", err)
	}

	store, err := intentdb.NewStore(*dbFile)
	if err != nil {
		log.Fatalf("Failed to open intent database: %v", err)
	}
	defer store.Close()
	if err := store.MigrateUp(*migrationsDir); err != nil {
		log.Fatalf("Failed to migrate intent database: %v", err)
	}

	queue := sched.NewIntentQueue(*intentSize)
	bridge := sched.NewBridge(queue)

	p := pipeline.New(pipeline.Options{
		SensorID: *sensorID,
		Config:   cfgStore,
		Index:    sc,
		Bridge:   bridge,
		Recorder: store,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p.Start(ctx)
	defer p.Stop()

	listener := gazenet.NewUDPListener(gazenet.ListenerConfig{
		Address: *udpAddr,
		Sink:    p,
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("UDP listener error: %v", err)
		}
	}()

	if *logIntents {
		wg.Add(1)
		go func() {
			defer wg.Done()
			drainIntents(ctx, queue)
		}()
	}

	server := &http.Server{
		Addr: *listen,
		Handler: api.LoggingMiddleware(
			api.NewServer(p, cfgStore).
				WithDB(store).
				WithQueue(queue, bridge).
				WithListener(listener).
				ServeMux()),
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("Starting HTTP server on %s", *listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	queue.Close()
	wg.Wait()
}
