package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"

	flog "plantcourier.game/internal/persistence/log"
	"plantcourier.game/internal/persistence/scoredb"
	"plantcourier.game/internal/protocol"
	"plantcourier.game/internal/sim/catalogs"
	"plantcourier.game/internal/sim/host"
	"plantcourier.game/internal/sim/session"
	"plantcourier.game/internal/sim/tuning"
	"plantcourier.game/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		mapID      = flag.String("map", "", "map id to run (default: first map in the registry)")
		seed       = flag.Int64("seed", 0, "order schedule seed (default: the registry seed for the map)")
		configDir  = flag.String("configs", "./configs", "config directory")
		schemaDir  = flag.String("schemas", "./schemas", "JSON schema directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the score history database")
		disableLog = flag.Bool("disable_log", false, "disable the session frame log")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", tp)
			tune = tuning.Default()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	maps, err := catalogs.LoadRegistry(filepath.Join(*configDir, "maps.yaml"))
	if err != nil {
		logger.Fatalf("load map registry: %v", err)
	}
	entry := maps[0]
	if *mapID != "" {
		found := false
		for _, m := range maps {
			if m.ID == *mapID {
				entry = m
				found = true
				break
			}
		}
		if !found {
			logger.Fatalf("map %q not in registry", *mapID)
		}
	}
	runSeed := entry.Seed
	if *seed != 0 {
		runSeed = *seed
	}

	cats, err := catalogs.Load(entry.Dir, *schemaDir)
	if err != nil {
		logger.Fatalf("load map %s: %v", entry.ID, err)
	}
	logger.Printf("map %s loaded: %d orders, %d locations, %d roads, digest %.12s",
		entry.ID, len(cats.Orders), len(cats.Locations), len(cats.Roads), cats.Digest)

	sessionID := uuid.NewString()
	sess := session.New(sessionID, cats, tune, runSeed)

	var logw *flog.Writer
	if !*disableLog {
		logw, err = flog.NewWriter(filepath.Join(*dataDir, "sessions"), flog.Header{
			SessionID:  sessionID,
			MapID:      entry.ID,
			MapDigest:  cats.Digest,
			Seed:       runSeed,
			TickRateHz: tune.TickRateHz,
		})
		if err != nil {
			logger.Fatalf("open frame log: %v", err)
		}
		defer logw.Close()
	}

	var db *scoredb.DB
	if !*disableDB {
		db, err = scoredb.Open(filepath.Join(*dataDir, "scores.db"))
		if err != nil {
			logger.Fatalf("open score db: %v", err)
		}
		defer db.Close()
	}

	h := host.New(host.Config{
		TickRateHz: tune.TickRateHz,
		MapID:      entry.ID,
		MapName:    entry.Name,
		MapDigest:  cats.Digest,
		Seed:       runSeed,
	}, sess, logw, db, logger)

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		MapID:           entry.ID,
		MapName:         entry.Name,
		MapDigest:       cats.Digest,
		TickRate:        tune.TickRateHz,
		ViewportW:       tune.Viewport.Width,
		ViewportH:       tune.Viewport.Height,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", ws.NewServer(h, welcome, logger).Handler())
	mux.HandleFunc("/v1/status", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{
			"session_id": sessionID,
			"map_id":     entry.ID,
			"map_digest": cats.Digest,
			"seed":       runSeed,
			"tick":       sess.Tick(),
		})
	})
	mux.HandleFunc("/v1/history", func(rw http.ResponseWriter, r *http.Request) {
		if db == nil {
			http.Error(rw, "history disabled", http.StatusNotFound)
			return
		}
		rows, err := db.History(20)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(rows)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := h.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("host loop: %v", err)
		}
	}()

	srv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	logger.Printf("session %s on map %s listening on %s", sessionID, entry.ID, *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("listen: %v", err)
	}
}
