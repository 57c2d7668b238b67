package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"tickettrail.org/internal/audit"
	"tickettrail.org/internal/auth"
	"tickettrail.org/internal/httpapi"
	"tickettrail.org/internal/obs"
	"tickettrail.org/internal/store/pg"
	"tickettrail.org/internal/tracker"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	_ = godotenv.Load()

	obs.Init(os.Getenv("TRACKER_LOG_LEVEL"), os.Getenv("TRACKER_ENV") == "development")
	defer obs.Sync()
	obs.RegisterMetrics()
	obs.InitBuildInfo(version, commit)

	log := obs.Logger()

	dsn := os.Getenv("TRACKER_PG_DSN")
	if dsn == "" {
		log.Fatal("TRACKER_PG_DSN is required")
	}
	store, err := pg.Open(dsn)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer store.Close()

	privatePEM, err := os.ReadFile(envOr("TRACKER_JWT_PRIVATE_KEY", "keys/jwt_private.pem"))
	if err != nil {
		log.Fatal("read private key", zap.Error(err))
	}
	publicPEM, err := os.ReadFile(envOr("TRACKER_JWT_PUBLIC_KEY", "keys/jwt_public.pem"))
	if err != nil {
		log.Fatal("read public key", zap.Error(err))
	}

	tokens, err := auth.NewService(store,
		auth.WithRS256Keys(string(privatePEM), string(publicPEM)),
		auth.WithIssuer(envOr("TRACKER_TOKEN_ISSUER", "tickettrail")),
	)
	if err != nil {
		log.Fatal("build token service", zap.Error(err))
	}

	resets, err := auth.NewResetService(store, store.ResetTokens(),
		auth.WithDelivery(func(identity auth.Identity, compound string) {
			// Mail delivery is not wired yet; operators read the code from
			// the log in the meantime.
			log.Info("password reset code issued",
				zap.String("identity_id", identity.ID),
				zap.String("email", identity.Email),
				zap.String("code", compound),
			)
		}),
	)
	if err != nil {
		log.Fatal("build reset service", zap.Error(err))
	}

	accounts, err := auth.NewAccountService(store)
	if err != nil {
		log.Fatal("build account service", zap.Error(err))
	}

	history, err := audit.NewLog(store.AuditEntries())
	if err != nil {
		log.Fatal("build audit log", zap.Error(err))
	}
	projects, err := tracker.NewProjectService(store.Projects())
	if err != nil {
		log.Fatal("build project service", zap.Error(err))
	}
	tickets, err := tracker.NewTicketService(store.Projects(), store.Tickets(), store.Comments(), history)
	if err != nil {
		log.Fatal("build ticket service", zap.Error(err))
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: store.DB()}, version, httpapi.Deps{
		Tokens:     tokens,
		Resets:     resets,
		Accounts:   accounts,
		Projects:   projects,
		Tickets:    tickets,
		Identities: store,
	})

	handler := api.Handler()
	if limit := strings.TrimSpace(os.Getenv("TRACKER_RATE_LIMIT")); limit != "0" {
		handler = httpapi.RateLimit(handler, 50, 25)
	}

	purgeCtx, stopPurge := context.WithCancel(context.Background())
	defer stopPurge()
	go purgeResetTokens(purgeCtx, resets, log)

	srv := &http.Server{
		Addr:              envOr("TRACKER_HTTP_ADDR", ":8080"),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info("starting tickettrail-api", zap.String("version", version), zap.String("addr", srv.Addr))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Info("stopped")
}

// purgeResetTokens sweeps expired password reset tokens once at startup and
// then every hour until the context is cancelled.
func purgeResetTokens(ctx context.Context, resets *auth.ResetService, log *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		if n, err := resets.PurgeExpired(ctx); err != nil {
			log.Warn("purge reset tokens", zap.Error(err))
		} else if n > 0 {
			log.Info("purged expired reset tokens", zap.Int64("count", n))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
