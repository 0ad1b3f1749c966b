// Command marketwatch runs the multi-tenant marketplace polling service:
// one Scheduler loop per allow-listed user, a shared Session Manager
// refreshing the marketplace session token, and the MCP control surface
// and status dashboard (SPEC_FULL.md §9.7, §9.8) for operating it.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joestump/marketwatch/internal/adapter/xianyu"
	"github.com/joestump/marketwatch/internal/allowlist"
	"github.com/joestump/marketwatch/internal/audit"
	"github.com/joestump/marketwatch/internal/config"
	"github.com/joestump/marketwatch/internal/history"
	"github.com/joestump/marketwatch/internal/logging"
	"github.com/joestump/marketwatch/internal/mcpserver"
	"github.com/joestump/marketwatch/internal/model"
	"github.com/joestump/marketwatch/internal/notifier"
	"github.com/joestump/marketwatch/internal/notifier/apprise"
	"github.com/joestump/marketwatch/internal/notifier/console"
	"github.com/joestump/marketwatch/internal/periodic"
	"github.com/joestump/marketwatch/internal/scheduler"
	"github.com/joestump/marketwatch/internal/sessiontoken"
	"github.com/joestump/marketwatch/internal/supervisor"
	"github.com/joestump/marketwatch/internal/web"
)

// version is stamped at build time in a real release pipeline; left as a
// constant here since this rewrite has no release tooling of its own.
const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "marketwatch",
		Short: "Multi-tenant marketplace polling and notification service",
		RunE:  run,
	}

	f := rootCmd.Flags()
	f.String("config", "config.properties", "path to config.properties")
	f.String("cookies", "", "path to cookies.properties (defaults to <storage.data.dir>/cookies.properties)")
	f.Bool("mcp", false, "run the MCP control-surface server on stdio instead of the polling service")

	_ = viper.BindPFlag("config_path", f.Lookup("config"))
	_ = viper.BindPFlag("cookies_path", f.Lookup("cookies"))
	_ = viper.BindPFlag("mcp_mode", f.Lookup("mcp"))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	configPath := viper.GetString("config_path")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info().Str("component", "main").Str("version", version).Str("config", configPath).Msg("marketwatch starting")

	cookiesPath := viper.GetString("cookies_path")
	if cookiesPath == "" {
		cookiesPath = filepath.Join(cfg.Storage.DataDir, "cookies.properties")
	}

	allow, err := allowlist.New(filepath.Join(cfg.Storage.DataDir, "whitelist.txt"))
	if err != nil {
		return fmt.Errorf("open allow-list: %w", err)
	}

	hist := history.NewStore(cfg.Storage.DataDir)

	tokenProvider := sessiontoken.NewFileProvider(cookiesPath, "m_h5_tk")
	tokens := sessiontoken.NewManager(tokenProvider, sessiontoken.Config{
		MinRefreshInterval: time.Duration(cfg.Cookie.CacheTTLMin) * time.Minute,
		ProactiveInterval:  time.Duration(cfg.Cookie.UpdateIntervalMin) * time.Minute,
	}, logging.Component(logger, "session_manager"))

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if _, err := tokens.Refresh(bootCtx, "startup"); err != nil {
		bootCancel()
		logger.Error().Str("component", "main").Err(err).Msg("initial session token fetch failed")
		return fmt.Errorf("initial session token fetch: %w", err)
	}
	bootCancel()

	ad := xianyu.New(xianyu.Config{
		BaseURL:        cfg.API.BaseURL,
		AppKey:         cfg.API.AppKey,
		ConnectTimeout: cfg.HTTPConnectTimeout(),
		ReadTimeout:    cfg.HTTPReadTimeout(),
		RequestDelayMS: cfg.API.DelayBetweenRequestsMS,
	})

	var notify notifier.Notifier
	if len(cfg.AppriseURLs) > 0 {
		notify = apprise.New(cfg.AppriseURLs, cfg.HTTPReadTimeout(), logging.Component(logger, "notifier"))
	} else {
		notify = console.New(logging.Component(logger, "notifier"))
		logger.Warn().Str("component", "main").Msg("no apprise_urls configured, notifications will only be logged")
	}

	pool := scheduler.NewPool(cfg.ThreadPool.CoreSize, cfg.ThreadPool.MaxSize, cfg.ThreadPool.QueueCapacity)
	sched := scheduler.New(pool, ad, tokens, hist, notify, scheduler.Config{
		MaxRetries:    cfg.HTTP.MaxRetries,
		RetryDelay:    time.Duration(cfg.HTTP.RetryDelayMS) * time.Millisecond,
		ItemSleep:     time.Duration(cfg.API.DelayBetweenRequestsMS) * time.Millisecond,
		ShutdownGrace: time.Duration(cfg.ShutdownGraceS) * time.Second,
	}, logging.Component(logger, "scheduler"))

	parserDefault := model.UserSettings{
		PollIntervalS: cfg.ParserDefault.CheckIntervalS,
		MaxAgeMin:     cfg.ParserDefault.MaxAgeMinutes,
		PagesPerCycle: cfg.ParserDefault.MaxPages,
		RowsPerPage:   cfg.ParserDefault.RowsPerPage,
		NotifyNewOnly: cfg.ParserDefault.NotifyNewOnly,
	}
	sup := supervisor.New(allow, sched, cfg.Storage.DataDir, parserDefault)

	auditPath := filepath.Join(cfg.Storage.DataDir, "marketwatch-audit.db")
	auditDB, err := audit.Open(auditPath)
	if err != nil {
		logger.Warn().Str("component", "main").Err(err).Msg("audit store unavailable, status dashboard history will be empty")
		auditDB = nil
	} else {
		defer auditDB.Close()
		sched.SetAudit(auditDB)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("component", "main").Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()

	if viper.GetBool("mcp_mode") {
		mcpSrv := mcpserver.NewServer(sup)
		runID := uuid.NewString()
		logger.Info().Str("component", "main").Str("run_id", runID).Msg("running in MCP control-surface mode")
		if err := mcpSrv.Run(ctx, version); err != nil && ctx.Err() == nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		sup.Shutdown()
		tokens.Shutdown()
		return nil
	}

	go tokens.Run(ctx)

	digest := periodic.NewStatsDigest(sup, notify, time.Duration(cfg.StatsDigestIntervalMin)*time.Minute, logging.Component(logger, "periodic"))
	go digest.Run(ctx)

	dashboard := web.New(cfg.DashboardPort, auditDB, sup)
	go func() {
		if err := dashboard.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error().Str("component", "main").Err(err).Msg("status dashboard error")
		}
	}()

	for _, userID := range allow.List() {
		if err := sup.Start(ctx, userID); err != nil {
			logger.Warn().Str("component", "main").Str("user_id", userID).Err(err).Msg("failed to start user at boot")
		}
	}

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownGraceS)*time.Second)
	defer shutdownCancel()
	if err := dashboard.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Str("component", "main").Err(err).Msg("status dashboard shutdown")
	}

	sup.Shutdown()
	tokens.Shutdown()
	logger.Info().Str("component", "main").Msg("marketwatch stopped")
	return nil
}
