package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/searchktools/fastry/config"
	"github.com/searchktools/fastry/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fastry",
	Short: "fastry serves HTTP routes backed by Lua handlers",
	Long: `fastry discovers route declarations in a project's Lua sources and serves them
from a pool of execution contexts that grows and shrinks with the request rate.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "Path to the YAML config file (env "+config.EnvConfigPath+")")
	flags.String("dir", "", "Directory containing the Lua project")
	flags.String("routes-file", "", "Route manifest to use instead of discovery")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: text, json")
}

// loadConfig layers the config file, FASTRY_* variables and flags set on cmd
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv(config.EnvConfigPath)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.Environ()); err != nil {
		return nil, err
	}

	overrides := map[string]*string{
		"dir":         &cfg.ProjectDir,
		"routes-file": &cfg.RoutesFile,
		"log-level":   &cfg.Log.Level,
		"log-format":  &cfg.Log.Format,
		"addr":        &cfg.Addr,
		"admin-addr":  &cfg.AdminAddr,
	}
	for name, field := range overrides {
		flag := cmd.Flags().Lookup(name)
		if flag != nil && flag.Changed {
			*field = flag.Value.String()
		}
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: logging.ParseFormat(cfg.Log.Format),
	})
}
