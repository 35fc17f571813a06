package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sonettogo/server/internal/config"
	"github.com/sonettogo/server/internal/data"
	"github.com/sonettogo/server/internal/gacha"
	"github.com/sonettogo/server/internal/gametime"
	"github.com/sonettogo/server/internal/handler"
	"github.com/sonettogo/server/internal/metrics"
	gonet "github.com/sonettogo/server/internal/net"
	"github.com/sonettogo/server/internal/net/packet"
	"github.com/sonettogo/server/internal/persist"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string, serverID int) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m             Sonetto  v0.1.0               \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m         1999 · Go 遊戲伺服器              \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1m伺服器:\033[0m %s \033[90m(編號: %d)\033[0m\n\n", serverName, serverID)
}

// displayWidth counts CJK runes as two columns.
func displayWidth(s string) int {
	w := 0
	for _, r := range s {
		if r > 0x7F {
			w += 2
		} else {
			w++
		}
	}
	return w
}

func printSection(title string) {
	lineLen := max(46-displayWidth(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(42-displayWidth(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("SONETTO_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name, cfg.Server.ID)

	// 3. Connect to PostgreSQL and run migrations
	printSection("資料庫")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := persist.NewDB(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	printOK("PostgreSQL 連線成功")

	if err := persist.RunMigrations(ctx, db.Pool, log); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	printOK("資料庫遷移完成")
	fmt.Println()

	// 4. Load static data
	printSection("資料載入")

	chars, err := data.LoadCharacterTable(filepath.Join(cfg.Data.Dir, "character_list.yaml"))
	if err != nil {
		return fmt.Errorf("load character table: %w", err)
	}
	printStat("角色", chars.Count())

	banners, err := data.LoadBannerTable(filepath.Join(cfg.Data.Dir, "banner_list.yaml"))
	if err != nil {
		return fmt.Errorf("load banner table: %w", err)
	}
	for _, b := range banners.All() {
		if err := b.Pool(chars, "").Validate(); err != nil {
			return fmt.Errorf("banner table: %w", err)
		}
	}
	printStat("卡池", len(banners.All()))

	rng, err := gacha.NewRand(cfg.Gacha.Seed)
	if err != nil {
		return err
	}
	fmt.Println()

	// 5. Metrics
	var m *metrics.Metrics
	promReg := prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(promReg)
	}

	// 6. Register command handlers
	sessions := gonet.NewSessionStore()
	deps := &handler.Deps{
		Users:      persist.NewUserRepo(db),
		Players:    persist.NewPlayerRepo(db),
		RedDots:    persist.NewRedDotRepo(db),
		Items:      persist.NewItemRepo(db),
		Currencies: persist.NewCurrencyRepo(db),
		Heroes:     persist.NewHeroRepo(db),
		Summons:    persist.NewSummonRepo(db),
		Stats:      persist.NewStatsRepo(db),
		Characters: chars,
		Banners:    banners,
		Sessions:   sessions,
		Clock:      gametime.New(cfg.Server.UTCOffset, cfg.Server.ResetHour),
		Rand:       rng,
		Metrics:    m,
		Config:     cfg,
		Log:        log,
	}
	reg := packet.NewRegistry(log)
	handler.RegisterAll(reg, deps)

	// 7. Create network server
	pps := 0
	if cfg.RateLimit.Enabled {
		pps = cfg.RateLimit.PacketsPerSecond
	}
	netServer, err := gonet.NewServer(gonet.ServerOptions{
		BindAddress:    cfg.Network.BindAddress,
		MaxFrameSize:   cfg.Network.MaxFrameSize,
		ReadTimeout:    cfg.Network.ReadTimeout,
		HandlerTimeout: cfg.Network.HandlerTimeout,
		Session: gonet.SessionOptions{
			OutQueueSize:     cfg.Network.OutQueueSize,
			WriteTimeout:     cfg.Network.WriteTimeout,
			PacketsPerSecond: pps,
			Burst:            cfg.RateLimit.Burst,
		},
		ShouldDisconnect: handler.ShouldDisconnect,
		OnClose:          handler.OnSessionClose(deps),
	}, reg, sessions, m, log)
	if err != nil {
		return fmt.Errorf("net server: %w", err)
	}

	// 8. Serve until a shutdown signal
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(sigCtx)

	g.Go(func() error {
		return netServer.Serve(gctx)
	})

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{Registry: promReg}))
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("收到關閉信號，伺服器停止中")
		netServer.Shutdown()
		if metricsSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metricsSrv.Shutdown(shutdownCtx)
		}
		return nil
	})

	printSection("伺服器就緒")
	printReady(fmt.Sprintf("監聽位址 %s", netServer.Addr().String()))
	if cfg.Metrics.Enabled {
		printReady(fmt.Sprintf("監控指標 http://%s/metrics", cfg.Metrics.Addr))
	}
	fmt.Println()

	err = g.Wait()
	log.Info("伺服器已停止", zap.Int("sessions", sessions.Count()))
	return err
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
