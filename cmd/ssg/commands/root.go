package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ssg-backend/lib/configutil"
	"ssg-backend/lib/serviceutil"
	"ssg-backend/lib/sqliteutil"
	"ssg-backend/lib/telemetry"
	"ssg-backend/services/assets"
	"ssg-backend/services/pipeline"
	"ssg-backend/services/tracker"
	"ssg-backend/services/tracker/db"

	"dario.cat/mergo"
	"github.com/spf13/cobra"
)

type FetchConfig struct {
	MinDelayMs     int `json:"min_delay_ms"`
	Retries        int `json:"retries"`
	TimeoutSeconds int `json:"timeout_seconds"`
}

type WatchConfig struct {
	PollSeconds int `json:"poll_seconds"`
}

type Config struct {
	DataDir   string `json:"data_dir"`
	OutputDir string `json:"output_dir"`
	CacheDir  string `json:"cache_dir"`
	DropDir   string `json:"drop_dir"`
	// optional folder copied verbatim into every artifact set
	ExtrasDir string `json:"extras_dir"`

	Fetch FetchConfig `json:"fetch"`
	Watch WatchConfig `json:"watch"`

	StripMultiplayer        bool `json:"strip_multiplayer"`
	CleanHiddenDescriptions bool `json:"clean_hidden_descriptions"`
}

var defaultConfig = Config{
	DataDir:   ".ssg",
	OutputDir: "output",
	CacheDir:  filepath.Join(".ssg", "cache"),
	DropDir:   "drop",
	Fetch: FetchConfig{
		MinDelayMs:     1500,
		Retries:        3,
		TimeoutSeconds: 15,
	},
	Watch: WatchConfig{
		PollSeconds: 5,
	},
}

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "ssg",
	Short: "ssg turns saved SteamDB stats pages into emulator config artifacts.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() Config {
	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil && !os.IsNotExist(err) {
		serviceutil.Fatal("failed to read config", err)
	}
	err = mergo.Merge(&cfg, defaultConfig)
	if err != nil {
		serviceutil.Fatal("failed to apply config defaults", err)
	}
	return cfg
}

type app struct {
	cfg      Config
	db       *sql.DB
	tracker  tracker.Service
	pipeline *pipeline.Pipeline
}

func setup() app {
	cfg := loadConfig()

	database, err := sqliteutil.OpenDB(db.Schema, filepath.Join(cfg.DataDir, "state.db"))
	if err != nil {
		serviceutil.Fatal("failed to open state db", err)
	}
	trk, err := tracker.NewService(database, filepath.Join(cfg.DataDir, "pages"))
	if err != nil {
		serviceutil.Fatal("failed to initialize tracker", err)
	}
	cache, err := assets.NewCache(cfg.CacheDir)
	if err != nil {
		serviceutil.Fatal("failed to initialize icon cache", err)
	}
	fetcher := assets.NewFetcher(cache, assets.FetcherOptions{
		MinDelay: time.Duration(cfg.Fetch.MinDelayMs) * time.Millisecond,
		Retries:  cfg.Fetch.Retries,
		Timeout:  time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
	})

	return app{
		cfg:     cfg,
		db:      database,
		tracker: trk,
		pipeline: pipeline.New(trk, fetcher, pipeline.Options{
			OutputRoot:              cfg.OutputDir,
			ExtrasDir:               cfg.ExtrasDir,
			StripMultiplayer:        cfg.StripMultiplayer,
			CleanHiddenDescriptions: cfg.CleanHiddenDescriptions,
		}),
	}
}

func (a app) close() {
	a.db.Close()
}
