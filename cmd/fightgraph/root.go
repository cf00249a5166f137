package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/ramkansal/fightgraph/internal/config"
	"github.com/ramkansal/fightgraph/internal/fetcher"
	"github.com/spf13/cobra"
)

// interrupted is closed on the first interrupt signal.
var interrupted = make(chan struct{})

var (
	cfg    config.Config
	logger *slog.Logger
)

// flags that override the config file when set
var (
	configPath  string
	databaseArg string
	fetcherArg  string
	delayArg    time.Duration
	stateArg    string
	outputArg   string
	showBrowser bool
	verbose     bool
	noColor     bool
)

var rootCmd = &cobra.Command{
	Use:   "fightgraph",
	Short: "Crawls fighter profiles and builds a graph of fighters and bouts.",
	Long: `fightgraph logs in to a fight records site, walks fighter profiles breadth
first through their opponents and stores every fighter and bout in SQLite.

Credentials are read from the environment (BOXREC_USERNAME and
BOXREC_PASSWORD by default).`,
	Version:           version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&configPath, "config", config.DefaultFile, "path to the json5 config file")
	f.StringVar(&databaseArg, "db", "", "SQLite database path")
	f.StringVarP(&fetcherArg, "fetcher", "f", "", "browsing context: browser, http")
	f.DurationVar(&delayArg, "delay", 0, "pause between fighters (e.g. 3s)")
	f.StringVar(&stateArg, "state", "", "frontier state file to resume from and save to")
	f.StringVarP(&outputArg, "output", "o", "", "write a plain text report to this file")
	f.BoolVar(&showBrowser, "show-browser", false, "show the browser window")
	f.BoolVarP(&verbose, "verbose", "v", false, "show bouts per fighter and debug logs")
	f.BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(singleCmd, recursiveCmd, topCmd, fightersCmd)
}

// setup loads the config file and applies the flags that were set.
func setup(cmd *cobra.Command, args []string) error {
	if noColor {
		useColor = false
	}
	initSlog()

	loaded, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config %s: %w", configPath, err)
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		loaded.Database = databaseArg
	}
	if flags.Changed("fetcher") {
		switch fetcher.Mode(fetcherArg) {
		case fetcher.ModeBrowser, fetcher.ModeHTTP:
		default:
			return fmt.Errorf("unknown fetcher %q (use browser or http)", fetcherArg)
		}
		loaded.Fetcher = fetcherArg
	}
	if flags.Changed("delay") {
		loaded.Delay = delayArg.String()
	}
	if flags.Changed("state") {
		loaded.StateFile = stateArg
	}
	if flags.Changed("output") {
		loaded.Output = outputArg
	}
	if flags.Changed("show-browser") {
		loaded.ShowBrowser = showBrowser
	}

	cfg = loaded
	logger.Debug("config loaded", "path", configPath, "database", cfg.Database, "fetcher", cfg.Fetcher)
	return nil
}

func initSlog() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    !useColor,
	}))
	slog.SetDefault(logger)
}
