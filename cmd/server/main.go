// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/unclebandit/civic-notify/internal/app"
	"github.com/unclebandit/civic-notify/internal/config"
)

func main() {
	cfg := config.MustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal("❌ startup failed: ", err)
	}
	defer a.Close()

	// Without a broker the server runs queued campaigns itself.
	if a.InProcess {
		if err := a.Subscribe(context.WithoutCancel(ctx)); err != nil {
			log.Fatal("❌ failed to subscribe campaign worker: ", err)
		}
		log.Println("⚙️ In-process campaign worker subscribed")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Println("🚀 Server running on", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("🛑 Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Println("⚠️ shutdown:", err)
	}
}
