package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/achingachris/mya-server/internal/config"
)

// cli carries resolved settings to every sub-command.
type cli struct {
	v      *viper.Viper
	cfg    config.Config
	logger *slog.Logger
}

func main() {
	c := &cli{v: config.New()}
	if err := c.rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (c *cli) rootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "mya-server",
		Short:         "Awards voting and ticketing payment ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			envFile, envErr := config.LoadDotEnv()
			if err := config.ReadFile(c.v, configPath); err != nil {
				return err
			}
			cfg, err := config.Load(c.v)
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.logger = newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			slog.SetDefault(c.logger)

			switch {
			case envErr != nil:
				c.logger.Warn("could not load .env", "error", envErr)
			case envFile != "":
				c.logger.Debug("loaded env file", "path", envFile)
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (yaml, toml or json)")
	flags.String("store", "", "ledger store: postgres or sqlite (default postgres)")
	flags.String("database-url", "", "postgres connection string")
	flags.String("sqlite-path", "", "sqlite database file")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.String("log-format", "", "json or text")
	// Bound flags only win over env and config when set explicitly.
	_ = c.v.BindPFlag("store", flags.Lookup("store"))
	_ = c.v.BindPFlag("database_url", flags.Lookup("database-url"))
	_ = c.v.BindPFlag("sqlite_path", flags.Lookup("sqlite-path"))
	_ = c.v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = c.v.BindPFlag("log_format", flags.Lookup("log-format"))

	root.AddCommand(c.serveCmd())
	root.AddCommand(c.migrateCmd())
	root.AddCommand(c.chargesCmd())
	root.AddCommand(c.adminTokenCmd())
	return root
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
