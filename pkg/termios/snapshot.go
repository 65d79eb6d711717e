package termios

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Snapshot is a readable summary of the discipline-relevant bits of an
// attribute record.
type Snapshot struct {
	Canonical        bool   `json:"canonical" yaml:"canonical"`
	Echo             bool   `json:"echo" yaml:"echo"`
	EchoNewline      bool   `json:"echo_newline" yaml:"echo_newline"`
	Signals          bool   `json:"signals" yaml:"signals"`
	Extended         bool   `json:"extended" yaml:"extended"`
	OutputProcessing bool   `json:"output_processing" yaml:"output_processing"`
	MapCRToNL        bool   `json:"map_cr_to_nl" yaml:"map_cr_to_nl"`
	FlowControl      bool   `json:"flow_control" yaml:"flow_control"`
	EightBit         bool   `json:"eight_bit" yaml:"eight_bit"`
	EOF              string `json:"eof" yaml:"eof"`
	MinBytes         uint8  `json:"min_bytes" yaml:"min_bytes"`
	Timeout          uint8  `json:"timeout_deciseconds" yaml:"timeout_deciseconds"`
}

// Describe summarises a.
func Describe(a Attributes) Snapshot {
	return Snapshot{
		Canonical:        a.Lflag&unix.ICANON != 0,
		Echo:             a.Lflag&unix.ECHO != 0,
		EchoNewline:      a.Lflag&unix.ECHONL != 0,
		Signals:          a.Lflag&unix.ISIG != 0,
		Extended:         a.Lflag&unix.IEXTEN != 0,
		OutputProcessing: a.Oflag&unix.OPOST != 0,
		MapCRToNL:        a.Iflag&unix.ICRNL != 0,
		FlowControl:      a.Iflag&unix.IXON != 0,
		EightBit:         a.Cflag&unix.CSIZE == unix.CS8,
		EOF:              ControlName(EOFChar(a)),
		MinBytes:         a.Cc[unix.VMIN],
		Timeout:          a.Cc[unix.VTIME],
	}
}

// ControlName renders a control character in caret notation ("^D").
func ControlName(b byte) string {
	switch {
	case b == 0:
		return "<undef>"
	case b < 0x20:
		return "^" + string(rune(b+'@'))
	case b == 0x7f:
		return "^?"
	default:
		return fmt.Sprintf("%q", rune(b))
	}
}
