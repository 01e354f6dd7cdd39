package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/tartampluch/go-hebsync/internal/calendar"
	"github.com/tartampluch/go-hebsync/internal/config"
	"github.com/tartampluch/go-hebsync/internal/events"
	"github.com/tartampluch/go-hebsync/internal/feed"
	"github.com/tartampluch/go-hebsync/internal/hebdate"
	"github.com/tartampluch/go-hebsync/internal/i18n"
	"github.com/tartampluch/go-hebsync/internal/importer"
	"github.com/tartampluch/go-hebsync/internal/jobs"
	"github.com/tartampluch/go-hebsync/internal/recalc"
	"github.com/tartampluch/go-hebsync/internal/reconcile"
	"github.com/tartampluch/go-hebsync/internal/scheduler"
	"github.com/tartampluch/go-hebsync/internal/server"
	"github.com/tartampluch/go-hebsync/internal/store"
)

// main is the application entry point.
// It delegates execution to runMain to ensure that deferred function calls
// (like closing log files) are executed before the process terminates.
// os.Exit() does not run defers, so we must return an integer code first.
func main() {
	os.Exit(runMain())
}

// runMain manages the application lifecycle, argument parsing, and exit codes.
// Returns config.ExitCodeSuccess on success, config.ExitCodeError on failure.
func runMain() int {
	// -------------------------------------------------------------------------
	// 1. CLI Argument Parsing
	// -------------------------------------------------------------------------
	showVersion := flag.Bool(config.FlagVersion, false, config.FlagDescVersion)
	debugMode := flag.Bool(config.FlagDebug, false, config.FlagDescDebug)
	configPath := flag.String(config.FlagConfig, "", config.FlagDescConfig)
	flag.Parse()

	if *showVersion {
		printVersion()
		return config.ExitCodeSuccess
	}

	// -------------------------------------------------------------------------
	// 2. Logging Initialization
	// -------------------------------------------------------------------------
	// We configure structured logging (slog) early to capture startup issues.
	logCloser := setupLogging(*debugMode)
	if logCloser != nil {
		defer func() {
			_ = logCloser.Close() // Best effort close
		}()
	}

	// -------------------------------------------------------------------------
	// 3. Context & Signal Handling
	// -------------------------------------------------------------------------
	// Create a root context that cancels on SIGINT (Ctrl+C) or SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logStartupInfo()

	// -------------------------------------------------------------------------
	// 4. Application Logic
	// -------------------------------------------------------------------------
	if err := run(ctx, *configPath); err != nil {
		slog.Error(config.ErrAppFailed,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyError, err,
		)
		return config.ExitCodeError
	}

	slog.Info(config.MsgAppStop, config.LogKeyComponent, config.CompMain)
	return config.ExitCodeSuccess
}

// run loads the settings, wires every component, and blocks serving HTTP
// until the context is cancelled.
func run(ctx context.Context, configPath string) error {
	settings, err := config.LoadSettings(configPath)
	if err != nil {
		return err
	}
	slog.Info(config.MsgSettingsEffect,
		config.LogKeyComponent, config.CompMain,
		config.LogKeyListen, settings.Listen,
		config.LogKeyDataDir, settings.DataDir,
	)

	st, err := store.Open(settings.DataDir)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	translator, err := i18n.New()
	if err != nil {
		return err
	}

	clk := hebdate.RealClock{}

	recalculator := &recalc.Recalculator{
		Store:           st,
		Clock:           clk,
		ProjectionYears: settings.ProjectionYears,
		SunsetHour:      settings.SunsetHour,
	}

	creds := calendar.NewStoreCredentials(st, clk, settings.TokenEndpoint)
	client, err := calendar.NewHTTPClient(settings.CalendarAPIBase, creds)
	if err != nil {
		return err
	}

	reconciler := &reconcile.Reconciler{
		Store:       st,
		Client:      client,
		Credentials: creds,
		Builder:     &events.Builder{Translator: translator, Clock: clk},
		Translator:  translator,
		ChunkSize:   settings.SyncChunkSize,
	}

	queue := jobs.NewQueue()
	defer func() { _ = queue.Close() }()

	runner := &jobs.Runner{
		Store:      st,
		Reconciler: reconciler,
		Queue:      queue,
		Clock:      clk,
		TimeBudget: settings.JobTimeBudget,
	}

	router, err := queue.NewRouter(runner)
	if err != nil {
		return err
	}
	go func() {
		if err := router.Run(ctx); err != nil {
			slog.Error(config.ErrRouterRun,
				config.LogKeyComponent, config.CompMain,
				config.LogKeyError, err,
			)
		}
	}()

	sched := scheduler.New(st, recalculator, clk)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("%s: %w", config.ErrCronSchedule, err)
	}
	defer sched.Stop()

	srv := &server.Server{
		Listen: settings.Listen,
		Store:  st,
		Recalc: recalculator,
		Runner: runner,
		Importer: &importer.Importer{
			Store:   st,
			Recalc:  recalculator,
			Clock:   clk,
			Fetcher: importer.NewHTTPFetcher(),
		},
		Feed: &feed.Generator{
			Store:      st,
			Translator: translator,
			Clock:      clk,
		},
		Clock: clk,
	}
	return srv.Start(ctx)
}

// printVersion outputs the build information to stdout and exits.
func printVersion() {
	fmt.Printf(config.MsgVersionOutput,
		config.AppName,
		config.Version,
		runtime.GOOS,
		runtime.GOARCH,
	)
}

// logStartupInfo logs environment details useful for debugging.
func logStartupInfo() {
	slog.Info(config.MsgAppStarting,
		config.LogKeyComponent, config.CompMain,
		slog.Group(config.LogKeyBuild,
			slog.String(config.LogKeyApp, config.AppName),
			slog.String(config.LogKeyVersion, config.Version),
			slog.String(config.LogKeyGoVer, runtime.Version()),
		),
		slog.Group(config.LogKeyEnv,
			slog.String(config.LogKeyOS, runtime.GOOS),
			slog.String(config.LogKeyArch, runtime.GOARCH),
			slog.Int(config.LogKeyPID, os.Getpid()),
		),
	)
}

// setupLogging configures the default slog logger.
func setupLogging(debugMode bool) io.Closer {
	var writers []io.Writer
	var logFile *os.File

	// 1. Always write to Stdout.
	writers = append(writers, os.Stdout)

	// 2. Attempt to set up a file writer in the user's cache directory.
	if logPath, err := getLogFilePath(); err == nil {
		// O_TRUNC resets logs on restart to prevent indefinite growth.
		// Use centralized permission constants for security.
		f, err := os.OpenFile(logPath, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, config.FilePermUserRW)
		if err == nil {
			writers = append(writers, f)
			logFile = f
		} else {
			fmt.Fprintf(os.Stderr, config.MsgLogWarning, config.ErrLogFile, logPath, err)
		}
	}

	level := slog.LevelInfo
	if debugMode {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: debugMode,
	}

	logger := slog.New(slog.NewJSONHandler(io.MultiWriter(writers...), opts))
	slog.SetDefault(logger)

	if logFile == nil {
		return nil
	}
	return logFile
}

// getLogFilePath determines the platform-specific cache directory for logs.
func getLogFilePath() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCacheDir, err)
	}

	appDir := filepath.Join(cacheDir, config.AppID)

	// Ensure the directory exists with restricted permissions (700).
	if err := os.MkdirAll(appDir, config.DirPermUserRWX); err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCreateDir, err)
	}

	return filepath.Join(appDir, config.LogFileName), nil
}
