package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bnema/adblock-dashboard/internal/dashboard"
	"github.com/bnema/adblock-dashboard/internal/download"
	"github.com/bnema/adblock-dashboard/internal/engine"
	"github.com/bnema/adblock-dashboard/internal/fetcher"
	"github.com/bnema/adblock-dashboard/internal/models"
	"github.com/bnema/adblock-dashboard/internal/resources"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	cfg     models.Config
	cfgErr  error
	osFs    = afero.NewOsFs()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "adblock-dashboard",
	Short: "Interactively test adblock filters and filter lists",
	Long: `A terminal dashboard that shows how the filter engine parses single
filters, compiles filter lists, and decides network and cosmetic queries.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd == initCmd {
			return nil
		}
		return cfgErr
	},
	RunE: runTUI,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	RunE:  runInit,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ./configs/dashboard.toml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(tuiCmd, checkCmd, exportCmd, initCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("dashboard")
		viper.SetConfigType("toml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
	}

	// Set defaults
	viper.SetDefault("debounce", dashboard.DefaultDebounce.String())
	viper.SetDefault("http.timeout", "30s")
	viper.SetDefault("http.retries", 3)
	viper.SetDefault("engine.max_rules", engine.DefaultMaxRules)
	viper.SetDefault("export.format", string(engine.FormatDat))
	viper.SetDefault("export.dir", "./output")
	viper.SetDefault("log.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		cfgErr = fmt.Errorf("parse config: %w", err)
		return
	}
	cfgErr = cfg.Validate()
}

// newLogger builds the process logger. Logs go to the configured file when
// set, otherwise to fallback.
func newLogger(lc models.LogConfig, fallback io.Writer) (*slog.Logger, func() error, error) {
	var level slog.Level
	if lc.Level != "" {
		if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", lc.Level, err)
		}
	}

	w := fallback
	closeFn := func() error { return nil }
	if lc.File != "" {
		f, err := osFs.OpenFile(lc.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closeFn = f.Close
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return logger, closeFn, nil
}

// newStore wires a store from config
func newStore(logger *slog.Logger, opts ...dashboard.Option) (*dashboard.Store, error) {
	format, err := engine.ParseFormat(cfg.Export.Format)
	if err != nil {
		return nil, err
	}

	base := []dashboard.Option{
		dashboard.WithLogger(logger),
		dashboard.WithExportFormat(format),
		dashboard.WithDownloader(download.New(osFs, cfg.Export.Dir)),
	}
	if cfg.Debounce > 0 {
		base = append(base, dashboard.WithDebounce(cfg.Debounce))
	}
	return dashboard.NewStore(engine.NewAdapter(cfg.Engine.MaxRules), append(base, opts...)...), nil
}

// loadListText reads a local list, or fetches the enabled lists from config
// when no path is given
func loadListText(ctx context.Context, path string, logger *slog.Logger) (string, error) {
	if path != "" {
		data, err := afero.ReadFile(osFs, path)
		if err != nil {
			return "", fmt.Errorf("read filter list: %w", err)
		}
		return string(data), nil
	}

	lists := cfg.EnabledLists()
	if len(lists) == 0 {
		return "", nil
	}
	logger.Info("fetching filter lists", "count", len(lists))
	return fetcher.New(cfg.HTTP, logger).FetchLists(ctx, lists)
}

// loadResourcesText returns the resources.json to preload, if one is configured
func loadResourcesText(ctx context.Context, path string, logger *slog.Logger) (string, bool, error) {
	if path == "" {
		path = cfg.Resources.Path
	}
	if path != "" {
		text, err := resources.NewLoader(osFs).ReadText(path)
		return text, err == nil, err
	}
	if cfg.Resources.URL != "" {
		data, err := fetcher.New(cfg.HTTP, logger).Fetch(ctx, cfg.Resources.URL)
		if err != nil {
			return "", false, fmt.Errorf("fetch resources: %w", err)
		}
		return string(data), true, nil
	}
	return "", false, nil
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := "./configs/dashboard.toml"
	if cfgFile != "" {
		configPath = cfgFile
	}

	if _, err := osFs.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s", configPath)
	}

	dir := filepath.Dir(configPath)
	if err := osFs.MkdirAll(dir, 0755); err != nil {
		return err
	}

	if err := afero.WriteFile(osFs, configPath, []byte(defaultConfig), 0644); err != nil {
		return err
	}

	fmt.Printf("Created config file: %s\n", configPath)
	return nil
}

// persistExportFormat writes a changed export format back to the config file
func persistExportFormat(logger *slog.Logger, format engine.Format) {
	if strings.EqualFold(viper.GetString("export.format"), string(format)) {
		return
	}
	viper.Set("export.format", string(format))
	if viper.ConfigFileUsed() == "" {
		logger.Debug("no config file, export format not persisted")
		return
	}
	if err := viper.WriteConfig(); err != nil {
		logger.Warn("persist export format", "error", err)
	}
}

const defaultConfig = `# adblock-dashboard configuration

# quiet period before the filter list is recompiled
debounce = "1200ms"

[http]
timeout = "30s"
retries = 3

[engine]
max_rules = 50000

[export]
format = "dat"   # dat or json
dir = "./output"

[resources]
# path = "./resources.json"
# url = "https://raw.githubusercontent.com/brave/adblock-resources/master/dist/resources.json"

[log]
level = "info"
# file = "./dashboard.log"

[metrics]
# addr = "127.0.0.1:9464"

# Lists fetched when no --list file is given
[[lists]]
name = "easylist"
url = "https://easylist.to/easylist/easylist.txt"
enabled = false

[[lists]]
name = "ublock-filters"
url = "https://ublockorigin.github.io/uAssets/filters/filters.txt"
enabled = false
`
