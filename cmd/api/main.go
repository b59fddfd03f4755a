package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-taskboard-go/internal/auth"
	authrepo "github.com/ovaphlow/pitchfork/service-taskboard-go/internal/auth/repo"
	projectrepo "github.com/ovaphlow/pitchfork/service-taskboard-go/internal/project/repo"
	"github.com/ovaphlow/pitchfork/service-taskboard-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-taskboard-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-taskboard-go/pkg/utilities"
)

const sessionSweepInterval = 15 * time.Minute

func main() {
	// load .env file if present so os.Getenv picks values from it
	// this is best-effort: if no .env exists, continue (use defaults or real env)
	_ = godotenv.Load()

	// init logger
	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting service-taskboard-go")

	// the token secret has no fallback: refusing to start beats silently
	// signing with a well-known default
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		sugar.Fatal("JWT_SECRET is not set")
	}

	// init db
	cfg := database.ConfigFromEnv()
	sqlDB, err := database.Connect(cfg)
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer sqlDB.Close()

	// wrap with sqlx for convenience in repos/services
	sqlxDB := sqlx.NewDb(sqlDB, "postgres")
	defer sqlxDB.Close()

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ensureTables(ctx, sqlxDB); err != nil {
		sugar.Fatalf("ensure tables: %v", err)
	}

	authSvc := auth.NewService(sqlxDB, nil, nil, nil, []byte(secret))

	// expired session rows are not purged by request handling; sweep them
	// in the background instead
	go sweepSessions(ctx, authSvc, sugar)

	routerCfg := router.Config{
		ProtectProjectRoutes: os.Getenv("PROTECT_PROJECT_ROUTES") != "0",
		AllowedOrigin:        allowedOrigin(),
	}
	handler := router.RegisterRoutes(sugar, sqlxDB, authSvc, routerCfg)

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "9000"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: handler,
	}

	// run server in background
	go func() {
		sugar.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()

	sugar.Info("shutting down")

	// give a short grace period for cleanup
	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}

func ensureTables(ctx context.Context, db *sqlx.DB) error {
	if err := authrepo.NewUserRepo(db).EnsureTable(ctx); err != nil {
		return err
	}
	if err := authrepo.NewSessionRepo(db).EnsureTable(ctx); err != nil {
		return err
	}
	return projectrepo.NewProjectRepo(db).EnsureTables(ctx)
}

// sweepSessions periodically deletes expired session rows until ctx is
// cancelled.
func sweepSessions(ctx context.Context, svc *auth.Service, sugar *zap.SugaredLogger) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.SweepSessions(ctx)
			if err != nil {
				sugar.Warnw("session sweep failed", "err", err)
				continue
			}
			if n > 0 {
				sugar.Debugw("session sweep", "removed", n)
			}
		}
	}
}

func allowedOrigin() string {
	if v := os.Getenv("CORS_ORIGIN"); v != "" {
		return v
	}
	return "http://localhost:3000"
}
