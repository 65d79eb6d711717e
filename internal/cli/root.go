package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wavexx/expect/internal/config"
	"github.com/wavexx/expect/internal/metrics"
	"github.com/wavexx/expect/pkg/termios"
)

var (
	cfgFile string
	cfg     *config.Config

	// kernel is shared by every command so that all terminal system calls
	// are counted.
	kernel = metrics.InstrumentKernel(termios.System)
)

// ExitError carries a child process exit status out of a command.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ttyctl",
		Short: "Terminal line discipline control",
		Long: `Inspect and switch the line discipline of a terminal, and drive programs
through a pseudo-terminal with expect-style output checks.

Raw mode is the full cfmakeraw(3) profile. End-of-file is delivered to
programs without closing their terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			log.Logger = cfg.Log.Logger(cmd.ErrOrStderr())
			cfg.Log.ConfigureZerolog()
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ttyctl/config.yaml)")
	rootCmd.PersistentFlags().StringP("device", "d", "", "terminal device path (default is standard input)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("metrics-addr", "", "serve prometheus metrics on this address")

	viper.BindPFlag("device", rootCmd.PersistentFlags().Lookup("device"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("metrics.addr", rootCmd.PersistentFlags().Lookup("metrics-addr"))

	rootCmd.AddCommand(newModeCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newRunCmd())

	return rootCmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
