package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wavexx/expect/internal/output"
	"github.com/wavexx/expect/pkg/termios"
)

// Status is the result of the status command.
type Status struct {
	Device     string           `json:"device" yaml:"device"`
	Mode       string           `json:"mode" yaml:"mode"`
	Attributes termios.Snapshot `json:"attributes" yaml:"attributes"`
}

func (s Status) WriteText(w io.Writer) error {
	a := s.Attributes
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Device:\t%s\n", s.Device)
	fmt.Fprintf(tw, "Mode:\t%s\n", s.Mode)
	fmt.Fprintf(tw, "Canonical:\t%t\n", a.Canonical)
	fmt.Fprintf(tw, "Echo:\t%t\n", a.Echo)
	fmt.Fprintf(tw, "Echo newline:\t%t\n", a.EchoNewline)
	fmt.Fprintf(tw, "Signals:\t%t\n", a.Signals)
	fmt.Fprintf(tw, "Extended input:\t%t\n", a.Extended)
	fmt.Fprintf(tw, "Output processing:\t%t\n", a.OutputProcessing)
	fmt.Fprintf(tw, "Map CR to NL:\t%t\n", a.MapCRToNL)
	fmt.Fprintf(tw, "Flow control:\t%t\n", a.FlowControl)
	fmt.Fprintf(tw, "8-bit:\t%t\n", a.EightBit)
	fmt.Fprintf(tw, "EOF character:\t%s\n", a.EOF)
	fmt.Fprintf(tw, "VMIN / VTIME:\t%d / %d\n", a.MinBytes, a.Timeout)
	return tw.Flush()
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the terminal's line discipline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.GetFormatFromCmd(cmd)
			if err != nil {
				return err
			}

			dev, err := openDevice(cfg.Device)
			if err != nil {
				return err
			}
			defer dev.Close()

			fd, err := dev.handle.Fileno()
			if err != nil {
				return err
			}
			attr, err := kernel.GetAttr(fd)
			if err != nil {
				return fmt.Errorf("failed to read %s attributes: %w", dev.name, err)
			}

			formatter := output.New(format)
			formatter.SetWriter(cmd.OutOrStdout())
			return formatter.Output(Status{
				Device:     dev.name,
				Mode:       dev.handle.Mode().String(),
				Attributes: termios.Describe(attr),
			})
		},
	}

	output.AddFormatFlag(cmd)
	return cmd
}
