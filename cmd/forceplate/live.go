package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/forceplate.report/internal/db"
	"github.com/banshee-data/forceplate.report/internal/forceplate/realtime"
	"github.com/banshee-data/forceplate.report/internal/forceplate/samples"
	"github.com/banshee-data/forceplate.report/internal/ingest"
	"github.com/banshee-data/forceplate.report/internal/publish"
	"github.com/banshee-data/forceplate.report/internal/timeutil"
)

const simPort = "sim"

func runLive(args []string) error {
	fs := flag.NewFlagSet("live", flag.ContinueOnError)
	port := fs.String("port", "", `Serial device, or "sim" to replay a synthetic trace (required)`)
	baud := fs.Int("baud", ingest.DefaultBaudRate, "Serial baud rate")
	parity := fs.String("parity", "none", "Serial parity: none, even or odd")
	simTest := fs.String("sim-test", "cmj", "Test type replayed by -port sim")
	simBW := fs.Float64("sim-bw", 700, "Body weight in N of the simulated athlete")
	simReps := fs.Int("sim-reps", 3, "Number of simulated repetitions")
	speed := fs.Float64("speed", 1, "Replay speed for -port sim (0 replays as fast as possible)")
	broker := fs.String("mqtt", "", "MQTT broker URL (default from config; empty disables)")
	listen := fs.String("listen", ":8080", "Listen address for the websocket hub and debug routes (empty disables)")
	dbPath := fs.String("db", "", "Store completed trials in this database")
	athlete := fs.String("athlete", "", "Athlete ID for stored trials")
	test := fs.String("test", "", "Fix the test type: cmj, sj, dj, imtp or auto (default from config)")
	configPath := fs.String("config", "", "Tuning config JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *port == "" {
		fs.Usage()
		return errors.New("-port is required")
	}
	if *dbPath != "" && *athlete == "" {
		return errors.New("-athlete is required with -db")
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	rcfg := cfg.RealtimeConfig()
	if rcfg.Test, err = testFlag(*test, cfg); err != nil {
		return err
	}

	var src *ingest.LineSource
	if *port == simPort {
		tt, err := testFlag(*simTest, cfg)
		if err != nil {
			return err
		}
		b, err := synthFor(tt, rcfg.SampleRate, *simBW)
		if err != nil {
			return err
		}
		src = ingest.NewLineSource(simPort, ingest.NewReplayPort(repeat(b.Samples(), *simReps), *speed))
	} else {
		src, err = ingest.OpenSerial(*port, ingest.PortOptions{BaudRate: *baud, Parity: *parity})
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", *port, err)
		}
	}
	defer src.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The hub and MQTT subscription only reach the runner once it exists.
	var runner *realtime.Runner
	apply := func(ctx context.Context, c realtime.Correction) error {
		return runner.Apply(ctx, c)
	}

	hub := publish.NewHub(apply)
	sinks := publish.Multi{hub}

	var mqttPub *publish.MQTTPublisher
	if b := firstNonEmpty(*broker, cfg.GetMQTTBroker()); b != "" {
		if mqttPub, err = publish.DialMQTT(b, cfg.GetMQTTClientID(), cfg.GetMQTTTopicPrefix()); err != nil {
			return err
		}
		log.Printf("publishing to %s under %s/", b, cfg.GetMQTTTopicPrefix())
		sinks = append(sinks, mqttPub)
	}

	var database *db.DB
	var store *db.TrialStore
	if *dbPath != "" {
		if database, err = db.NewDB(*dbPath); err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer database.Close()
		store = db.NewTrialStore(database)
		sinks = append(sinks, db.NewRecorder(store, *athlete))
	}
	defer sinks.Close()

	session := realtime.NewSession(rcfg, sinks)
	runner = realtime.NewRunner(session, src, timeutil.RealClock{})
	log.Printf("session %s reading from %s", session.ID(), src.Name())

	if store != nil {
		if err := store.EnsureSession(&db.SessionRecord{
			SessionID: session.ID(),
			AthleteID: *athlete,
			Source:    src.Name(),
		}); err != nil {
			return err
		}
	}
	if mqttPub != nil {
		if err := mqttPub.SubscribeCorrections(ctx, apply); err != nil {
			log.Printf("mqtt corrections disabled: %v", err)
		}
	}

	var wg sync.WaitGroup
	if *listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/ws", hub)
		src.AttachAdminRoutes(mux)
		if database != nil {
			if err := database.AttachAdminRoutes(mux); err != nil {
				return err
			}
		}
		server := &http.Server{Addr: *listen, Handler: mux}

		wg.Add(1)
		go func() {
			defer wg.Done()
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Printf("HTTP server error: %v", err)
					stop()
				}
			}()
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Printf("HTTP server shutdown error: %v", err)
			}
		}()
		log.Printf("listening on %s (websocket at /ws, debug at /debug/)", *listen)
	}

	err = runner.Run(ctx)
	stop()
	wg.Wait()

	log.Printf("session %s ended: %s, %d trials", session.ID(), session.Status(), session.Trials())
	switch {
	case errors.Is(err, context.Canceled):
		return nil
	case *port == simPort && errors.Is(err, realtime.ErrSourceClosed):
		return nil
	}
	return err
}

// repeat plays ss n times back to back, shifting timestamps so they keep
// increasing.
func repeat(ss []samples.ForceSample, n int) []samples.ForceSample {
	if len(ss) == 0 || n <= 1 {
		return ss
	}
	step := ss[len(ss)-1].TimestampMs - ss[0].TimestampMs
	if len(ss) > 1 {
		step += ss[1].TimestampMs - ss[0].TimestampMs
	}
	out := make([]samples.ForceSample, 0, len(ss)*n)
	for i := 0; i < n; i++ {
		for _, s := range ss {
			s.TimestampMs += float64(i) * step
			out = append(out, s)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
