// Package app implements the mcp-gate command line.
package app

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// NewRootCmd creates the mcp-gate root command. Every command reads its
// settings through one viper instance: flags first, then the environment,
// then a .env file in the working directory.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:           "mcp-gate",
		Short:         "OAuth 2.1 gate for a single-user MCP server",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			logger, err := newLogger(cmd.ErrOrStderr(), v.GetString(keyLogFormat), v.GetString(keyLogLevel))
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String(keyLogLevel, "info", "log level: debug, info, warn, error")
	flags.String(keyLogFormat, "text", "log format: text, json, console")
	_ = v.BindPFlags(flags)

	rootCmd.AddCommand(newServeCmd(v))
	rootCmd.AddCommand(newPKCECmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mcp-gate %s\n", Version)
		},
	}
}
