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

	"github.com/ovaphlow/linkhoard/service-auth-go/internal/router"
	"github.com/ovaphlow/linkhoard/service-auth-go/internal/session"
	sessionrepo "github.com/ovaphlow/linkhoard/service-auth-go/internal/session/repo"
	"github.com/ovaphlow/linkhoard/service-auth-go/internal/setting"
	settingrepo "github.com/ovaphlow/linkhoard/service-auth-go/internal/setting/repo"
	"github.com/ovaphlow/linkhoard/service-auth-go/internal/user"
	userrepo "github.com/ovaphlow/linkhoard/service-auth-go/internal/user/repo"
	"github.com/ovaphlow/linkhoard/service-auth-go/pkg/database"
	"github.com/ovaphlow/linkhoard/service-auth-go/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	// this is best-effort: if no .env exists, continue (use defaults or real env)
	_ = godotenv.Load()

	// init logger
	lg, err := utilities.InitLogger(utilities.LogConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting linkhoard auth service")

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

	// repos and idempotent DDL
	users := userrepo.NewUserRepo(sqlxDB)
	sessions := sessionrepo.NewSessionRepo(sqlxDB)
	settings := settingrepo.NewSettingRepo(sqlxDB)
	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelBoot()
	for name, ensure := range map[string]func(context.Context) error{
		"users":    users.EnsureTable,
		"sessions": sessions.EnsureTable,
		"settings": settings.EnsureTable,
	} {
		if err := ensure(bootCtx); err != nil {
			sugar.Fatalf("ensure %s table: %v", name, err)
		}
	}

	// services
	secret := os.Getenv("APP_SECRET")
	if secret == "" {
		sugar.Warn("APP_SECRET not set; legacy password digests will not verify")
	}
	userSvc := user.NewService(users, user.NewHasher(secret))
	sessionSvc := session.NewService(sessions)
	settingSvc := setting.NewService(settings)

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// periodic sweep of expired sessions; validity never depends on it
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := sessionSvc.CleanupExpired(context.Background())
				if err != nil {
					sugar.Warnf("session sweep failed: %v", err)
					continue
				}
				if n > 0 {
					sugar.Infow("session sweep", "purged", n)
				}
			}
		}
	}()

	sugar.Info("service is running; press Ctrl+C to stop")

	// mount http server
	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = "0.0.0.0:8431"
	}
	handler := router.RegisterRoutes(sugar, userSvc, sessionSvc, settingSvc, router.Pages{})
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// run server in background
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()

	sugar.Info("shutting down")

	// give a short grace period for cleanup
	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// ping db once more
	if err := sqlDB.PingContext(doneCtx); err != nil {
		sugar.Warnf("db ping on shutdown failed: %v", err)
	}

	// shutdown http server
	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}
