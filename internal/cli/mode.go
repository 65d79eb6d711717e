package cli

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/wavexx/expect/pkg/discipline"
	"github.com/wavexx/expect/pkg/termios"
)

func newModeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mode <raw|cooked>",
		Short: "Switch the terminal between raw and cooked mode",
		Long: `Switch the line discipline of the terminal.

raw:    no line editing, no echo, no signal keys, no output processing,
        reads return as soon as one byte is available.
cooked: restore the canonical profile with echo and signal keys.

The setting stays on the device after the command exits.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"raw", "cooked"},
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := termios.ParseMode(args[0])
			if err != nil {
				return err
			}

			dev, err := openDevice(cfg.Device)
			if err != nil {
				return err
			}
			defer dev.Close()

			if err := discipline.New(kernel).SetMode(dev.handle, mode); err != nil {
				return fmt.Errorf("failed to switch %s to %s mode (code %d): %w", dev.name, mode, termios.Code(err), err)
			}

			log.Debug().Str("device", dev.name).Str("mode", mode.String()).Msg("Mode switched")
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", dev.name, mode)
			return nil
		},
	}
}
