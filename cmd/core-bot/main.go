package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/auditlog"
	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/cases"
	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/guildconfig"
	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/httpapi"
	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/moderation"
	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/obs"
	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/platform"
	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/rolebackup"
	pgstore "github.com/KanuckLemonFTW/Core-Bot-V2/internal/store/pg"
	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/stream"
	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/temprole"
)

var version = "2.1.0"

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	obs.Init()
	obs.InitBuildInfo(version, envOr("COREBOT_COMMIT", "dev"))

	cfg, err := guildconfig.Load(envOr("COREBOT_CONFIG", "config.json"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Case ledger: Postgres when a DSN is set, JSON file otherwise.
	var (
		ledger cases.Service
		db     *sql.DB
	)
	if dsn := os.Getenv("COREBOT_PG_DSN"); dsn != "" {
		store, err := pgstore.Open(dsn)
		if err != nil {
			log.Fatalf("open case store: %v", err)
		}
		ledger = store
		db = store.DB()
	} else {
		ledger = cases.NewLedger(envOr("COREBOT_CASES_PATH", "data/cases.json"))
	}

	backups := rolebackup.NewStore(envOr("COREBOT_BACKUPS_PATH", "data/rolebackups.json"))
	tempRoles := temprole.NewStore(envOr("COREBOT_TEMPROLES_PATH", "data/temproles.json"))

	// The memory client stands in until a gateway adapter is plugged in.
	client := platform.NewMemory()

	events := stream.New()
	svc := moderation.New(moderation.Deps{
		Client:    client,
		Ledger:    ledger,
		Backups:   backups,
		TempRoles: tempRoles,
		AuditLog: auditlog.New(client, auditlog.ChannelMap(
			cfg.Channels.GlobalBanLogs, cfg.Channels.BlacklistLogs)),
		Config:  cfg,
		Checker: cfg.Checker(),
		Events:  events,
	})
	_ = svc // command transports attach here

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cases.StartPruner(ctx, ledger, cases.DefaultPruneInterval, cases.DefaultMaxAge)
	if removed, err := backups.SweepExpired(ctx); err != nil {
		obs.Error("startup role backup sweep failed", err, nil)
	} else if removed > 0 {
		obs.Info("expired role backups removed at startup", map[string]any{"removed": removed})
	}
	sweeper := temprole.NewSweeper(tempRoles, client, temprole.DefaultSweepInterval)
	go sweeper.Run(ctx)

	requireAuth := os.Getenv("COREBOT_OPS_SECRET") != ""
	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, events, requireAuth)

	srv := &http.Server{
		Addr:              envOr("COREBOT_ADDR", ":8080"),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting core-bot %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	cancel()
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
