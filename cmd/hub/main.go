package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dhkang/stock-hub/internal/bridge"
	"github.com/dhkang/stock-hub/internal/config"
	"github.com/dhkang/stock-hub/internal/hub"
	"github.com/dhkang/stock-hub/internal/session"
	"github.com/dhkang/stock-hub/internal/stock"
)

func main() {
	cfg := config.Load()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Println("stock hub starting")

	// Context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	// MongoDB
	store, err := stock.NewStore(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer store.Close(context.Background())

	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	if cfg.SeedStocks {
		if err := stock.EnsureSeed(ctx, store); err != nil {
			log.Fatalf("seed failed: %v", err)
		}
	}

	stocks := stock.NewMongoService(store.DB())

	// Hub + event bus
	h := hub.New(prometheus.DefaultRegisterer)
	bus := hub.NewBus()
	h.Attach(bus)

	// Redis event bridge (opt-in)
	if cfg.RedisAddr != "" {
		br, err := bridge.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, bus)
		if err != nil {
			log.Fatalf("bridge connection failed: %v", err)
		}
		defer br.Close()
		go br.Run(ctx)
	} else {
		log.Println("event bridge disabled (no redis address)")
	}

	// HTTP/WebSocket server
	handler := session.NewHandler(h, stocks, cfg.SendBufferSize)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.HandlerFunc())
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","clients":%d}`, h.ClientCount())
	})

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("WebSocket server listening on ws://%s/ws", addr)
	log.Printf("Health check: http://%s/health", addr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}

	log.Println("stock hub stopped")
}
