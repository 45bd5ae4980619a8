package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/toolmesh/gateway/internal/gatewayconfig"
	"github.com/toolmesh/gateway/internal/logger"
	"github.com/toolmesh/gateway/internal/mount"
	"github.com/toolmesh/gateway/internal/registry"
	"github.com/toolmesh/gateway/internal/scheduler"
	"github.com/toolmesh/gateway/internal/searchindex"
	"github.com/toolmesh/gateway/internal/supervisor"
	"github.com/toolmesh/gateway/internal/toolsurface"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway's upstream MCP server over stdio",
	RunE:  runServe,
}

func appDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(configDir, "toolmesh-gateway"), nil
}

func loadSettings() (gatewayconfig.Settings, error) {
	dir, err := appDir()
	if err != nil {
		return gatewayconfig.Settings{}, err
	}

	settingsPath := flagConfigPath
	if settingsPath == "" {
		settingsPath = filepath.Join(dir, "settings.yaml")
	}

	store := gatewayconfig.NewStore(settingsPath)
	settings, err := store.Load(dir)
	if err != nil {
		return gatewayconfig.Settings{}, err
	}

	if flagCacheDir != "" {
		settings.CacheDir = flagCacheDir
	}
	if flagSourcesDir != "" {
		settings.SourcesDir = flagSourcesDir
	}
	if flagRefreshInterval != 0 {
		settings.RefreshInterval = flagRefreshInterval
	}
	if flagContainerBinary != "" {
		settings.ContainerBinary = flagContainerBinary
	}
	if flagLogLevel != "" {
		settings.LogLevel = flagLogLevel
	}
	return settings, nil
}

func buildGateway(ctx context.Context, settings gatewayconfig.Settings) (*toolsurface.Surface, *scheduler.Scheduler, *supervisor.Supervisor, error) {
	index := searchindex.NewIndex()
	store := registry.NewStore(settings.CacheDir, index)
	if err := store.Load(); err != nil {
		return nil, nil, nil, fmt.Errorf("load registry store: %w", err)
	}

	sched := scheduler.New(store, settings.RefreshInterval)
	for _, src := range []registry.SourceType{
		registry.SourceDocker, registry.SourceMCPServers,
		registry.SourceMCPOfficial, registry.SourceAwesome, registry.SourceCustom,
	} {
		sourceDir := filepath.Join(settings.SourcesDir, string(src))
		sched.Register(src, scheduler.NewStaticProducer(sourceDir))
	}

	sup := supervisor.New(settings.ContainerBinary)
	if err := sup.Probe(ctx); err != nil {
		return nil, nil, nil, err
	}
	surface := toolsurface.New(os.Stdout)
	engine := mount.New(store, sup, surface)

	toolsurface.RegisterFixedTools(surface, store, index, engine, sched)

	return surface, sched, sup, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	dir, err := appDir()
	if err != nil {
		return err
	}
	if err := logger.Init(dir); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	surface, sched, sup, err := buildGateway(ctx, settings)
	if err != nil {
		return err
	}

	sched.Start(ctx)
	logger.AddLog("INFO", "gateway started")

	serveErr := make(chan error, 1)
	go func() { serveErr <- surface.Serve(ctx, os.Stdin) }()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.AddLog("ERROR", fmt.Sprintf("stdio loop exited: %v", err))
		}
	}

	// Shutdown sequence: scheduler first (stop scheduling new refreshes),
	// then the supervisor tears down every mounted child, releasing
	// their rpc clients along the way since each client's pipes close
	// when its child exits.
	sched.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	sup.CleanupAll(shutdownCtx)

	logger.AddLog("INFO", "gateway stopped")
	return nil
}
