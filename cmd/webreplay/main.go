package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/v0xg/webreplay/internal/activity"
	"github.com/v0xg/webreplay/internal/browser"
	"github.com/v0xg/webreplay/internal/config"
	"github.com/v0xg/webreplay/internal/enrich"
	"github.com/v0xg/webreplay/internal/executor"
	"github.com/v0xg/webreplay/internal/readiness"
	"github.com/v0xg/webreplay/internal/recap"
	"github.com/v0xg/webreplay/internal/replayer"
	"github.com/v0xg/webreplay/internal/store"
	"github.com/v0xg/webreplay/internal/vision"
)

var (
	configPath string
	headless   bool
	timeout    time.Duration
	reportPath string
	dbPath     string
	shotsDir   string
	visionMode string
	model      string
	profile    string
	gifPath    string
)

func main() {
	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()
	initLogging()

	rootCmd := &cobra.Command{
		Use:   "webreplay",
		Short: "Replay recorded browser activity logs against a live browser",
		Long: `webreplay replays a JSON activity log captured by a browser recorder.
Each recorded action is resolved against the live page through a cascade of
strategies (recorded DOM path, locator bundle, shadow/iframe search, recorded
coordinates, vision model) and executed, producing a pass/fail report.`,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "webreplay.yaml", "Config file")

	replayCmd := &cobra.Command{
		Use:   "replay [activity_log.json]",
		Short: "Replay an activity log",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runReplay,
	}
	replayCmd.Flags().BoolVar(&headless, "headless", true, "Run the browser headless")
	replayCmd.Flags().DurationVar(&timeout, "timeout", 0, "Page readiness timeout (overrides config)")
	replayCmd.Flags().StringVar(&reportPath, "report", "", "HTML report path (overrides config)")
	replayCmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	replayCmd.Flags().StringVar(&shotsDir, "screenshots-dir", "", "Screenshot directory (overrides config)")
	replayCmd.Flags().StringVar(&visionMode, "vision", "", "Vision backend: auto, openai, claude, off")
	replayCmd.Flags().StringVar(&model, "model", "", "Vision model override")
	replayCmd.Flags().StringVar(&profile, "profile", "", "Chrome/Chromium profile directory for authenticated sessions")
	replayCmd.Flags().StringVar(&gifPath, "gif", "", "Write an animated GIF recap of the run's screenshots")

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored replay runs",
		Args:  cobra.NoArgs,
		RunE:  runRuns,
	}
	runsCmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")

	enrichCmd := &cobra.Command{
		Use:   "enrich <activity_log.json>",
		Short: "Generate vision descriptions for a log's activities",
		Args:  cobra.ExactArgs(1),
		RunE:  runEnrich,
	}
	enrichCmd.Flags().StringVar(&visionMode, "vision", "", "Vision backend: auto, openai, claude, off")
	enrichCmd.Flags().StringVar(&model, "model", "", "Vision model override")

	rootCmd.AddCommand(replayCmd, runsCmd, enrichCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initLogging configures slog from WEBREPLAY_LOG (debug, info, warn, error).
func initLogging() {
	level := slog.LevelWarn
	switch strings.ToLower(os.Getenv("WEBREPLAY_LOG")) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return cfg, err
	}

	// Flags override file and env.
	if cmd.Flags().Changed("headless") {
		cfg.Headless = headless
	}
	if timeout > 0 {
		cfg.PageTimeout = timeout
	}
	if reportPath != "" {
		cfg.ReportPath = reportPath
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if shotsDir != "" {
		cfg.ScreenshotsDir = shotsDir
	}
	if visionMode != "" {
		cfg.Vision = visionMode
	}
	if model != "" {
		cfg.VisionModel = model
	}
	if profile != "" {
		cfg.ProfileDir = profile
	}
	return cfg, nil
}

// newFinder selects the vision backend per config.
func newFinder(cfg config.Config) vision.Finder {
	switch cfg.Vision {
	case "off":
		return vision.NoopFinder{}
	case "openai":
		f, err := vision.NewOpenAIFinder(cfg.VisionModel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v, vision disabled\n", err)
			return vision.NoopFinder{}
		}
		return f
	case "claude":
		f, err := vision.NewClaudeFinder(cfg.VisionModel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v, vision disabled\n", err)
			return vision.NoopFinder{}
		}
		return f
	default:
		return vision.New(cfg.VisionModel)
	}
}

func runReplay(cmd *cobra.Command, args []string) error {
	logPath := "activity_log.json"
	if len(args) == 1 {
		logPath = args[0]
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	activities, err := activity.LoadLog(logPath)
	if err != nil {
		return err
	}
	fmt.Printf("→ Loaded %d activities from %s\n", len(activities), logPath)

	if cfg.ScreenshotsDir != "" {
		if err := os.MkdirAll(cfg.ScreenshotsDir, 0o755); err != nil {
			return fmt.Errorf("create screenshot directory: %w", err)
		}
	}

	fmt.Printf("→ Launching browser... ")
	session, err := browser.Launch(browser.Options{
		Width:      cfg.Width,
		Height:     cfg.Height,
		Headless:   cfg.Headless,
		ProfileDir: cfg.ProfileDir,
	})
	if err != nil {
		fmt.Println("failed")
		return err
	}
	defer session.Close()
	fmt.Println("done")

	finder := newFinder(cfg)
	oracle := readiness.New(session.Prober())

	exec := executor.New(session, finder, oracle, executor.Options{
		PageTimeout:    cfg.PageTimeout,
		LocatorTimeout: cfg.LocatorTimeout,
		ScreenshotDir:  cfg.ScreenshotsDir,
		Highlight:      cfg.Highlight,
	})

	var db *store.Store
	if cfg.DBPath != "" {
		db, err = store.Open(cfg.DBPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v, persistence disabled\n", err)
		} else {
			defer db.Close()
		}
	}

	r := &replayer.Replayer{
		Exec:       exec,
		Store:      db,
		ReportPath: cfg.ReportPath,
		StepPause:  cfg.StepPause,
	}

	fmt.Printf("→ Replaying...\n")
	summary := r.Run(context.Background(), logPath, activities)
	replayer.PrintSummary(summary)

	if gifPath != "" {
		if err := recap.Write(gifPath, summary.Results, recap.Options{}); err != nil {
			fmt.Fprintf(os.Stderr, "warning: recap not written: %v\n", err)
		} else {
			fmt.Printf("Recap: %s\n", gifPath)
		}
	}

	if summary.Fatal != nil {
		return summary.Fatal
	}
	return nil
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded yet")
		return nil
	}

	for _, r := range runs {
		fmt.Printf("%s  %-9s  %d/%d passed  %s  %s\n",
			r.ID, r.Status, r.Passed, r.Total, r.StartedAt, r.LogPath)
	}
	return nil
}

func runEnrich(cmd *cobra.Command, args []string) error {
	logPath := args[0]

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	activities, err := activity.LoadLog(logPath)
	if err != nil {
		return err
	}

	finder := newFinder(cfg)
	fmt.Printf("→ Enriching %d activities... ", len(activities))
	n := enrich.Run(context.Background(), finder, activities)
	fmt.Printf("done (%d descriptions added)\n", n)

	if n == 0 {
		return nil
	}
	return activity.SaveLog(logPath, activities)
}
