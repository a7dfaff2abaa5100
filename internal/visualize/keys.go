package visualize

import (
	"bufio"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	// KeyEscape stops the session.
	KeyEscape byte = 27
	// keyInterrupt is Ctrl-C as delivered in raw mode, where it raises no signal.
	keyInterrupt byte = 3
	// keySequence stands for a multi-byte escape sequence such as an arrow key.
	keySequence byte = 0
)

// IsStop reports whether key ends the session.
func IsStop(key byte) bool {
	return key == KeyEscape || key == keyInterrupt
}

// TerminalKeys reads single key presses from a terminal. When the input is
// not a terminal it reads whole lines and reports their first byte, or '\n'
// for an empty line.
type TerminalKeys struct {
	in     *os.File
	reader *bufio.Reader
}

// NewTerminalKeys reads keys from in, typically os.Stdin.
func NewTerminalKeys(in *os.File) *TerminalKeys {
	return &TerminalKeys{in: in, reader: bufio.NewReader(in)}
}

// ReadKey implements KeySource.
func (k *TerminalKeys) ReadKey() (byte, error) {
	fd := int(k.in.Fd())
	if !term.IsTerminal(fd) {
		return readLineKey(k.reader)
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		return 0, err
	}
	defer term.Restore(fd, state) //nolint:errcheck // best effort restore

	// A single read returns the whole sequence a key press produced, so the
	// bytes after an escape are not left behind for the next call.
	var buf [16]byte
	n, err := k.in.Read(buf[:])
	if n == 0 {
		if err == nil {
			err = io.ErrNoProgress
		}
		return 0, err
	}
	return decodeKey(buf[:n]), nil
}

// decodeKey maps the bytes of one key press to a key. A lone escape stops the
// session; an escape sequence (arrows, function keys) only advances it.
func decodeKey(b []byte) byte {
	if len(b) > 1 && b[0] == KeyEscape {
		return keySequence
	}
	return b[0]
}

func readLineKey(r *bufio.Reader) (byte, error) {
	line, err := r.ReadString('\n')
	if len(line) == 0 {
		return 0, err
	}
	if key := strings.TrimRight(line, "\r\n"); key != "" {
		return decodeKey([]byte(key)), nil
	}
	return line[0], nil
}
