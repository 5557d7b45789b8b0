// Package control exposes a pixel buffer through a small text protocol,
// served line by line on a stream or one command per websocket message.
package control

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/neopixel/neopixel"
)

// Session serialises access to a Buffer shared by several clients.
type Session struct {
	// Driver names the transmitter in health reports.
	Driver string

	mu        sync.Mutex
	buf       *neopixel.Buffer
	commands  uint64
	startTime time.Time
}

func NewSession(b *neopixel.Buffer) *Session {
	return &Session{buf: b, startTime: time.Now()}
}

// Close releases the underlying buffer.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Release()
}

func atoi(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrapf(neopixel.ErrValue, "%q is not an integer", s)
	}
	return v, nil
}

func atois(args []string) ([]int, error) {
	out := make([]int, len(args))
	for i, a := range args {
		v, err := atoi(a)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// wantArgs checks the argument count; hi < 0 means no upper bound.
func wantArgs(cmd string, args []string, lo, hi int) error {
	if len(args) < lo || (hi >= 0 && len(args) > hi) {
		return errors.Errorf("%s: wrong number of arguments (%d)", cmd, len(args))
	}
	return nil
}

func formatSlice(ps []neopixel.Components) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Exec runs one command line and returns its reply.
func (s *Session) Exec(line string) (string, error) {
	t := strings.Fields(line)
	if len(t) == 0 {
		return "", errors.New("empty command")
	}
	cmd := strings.ToUpper(t[0])
	args := t[1:]

	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands++
	b := s.buf

	switch cmd {
	case "LEN":
		return strconv.Itoa(b.Len()), wantArgs(cmd, args, 0, 0)
	case "GET":
		if err := wantArgs(cmd, args, 1, 1); err != nil {
			return "", err
		}
		i, err := atoi(args[0])
		if err != nil {
			return "", err
		}
		p, err := b.Get(i)
		if err != nil {
			return "", err
		}
		return p.String(), nil
	case "SET":
		if err := wantArgs(cmd, args, 2, 2); err != nil {
			return "", err
		}
		i, err := atoi(args[0])
		if err != nil {
			return "", err
		}
		c, err := ParseColor(args[1])
		if err != nil {
			return "", err
		}
		return "OK", b.Set(i, c)
	case "GETSLICE":
		if err := wantArgs(cmd, args, 2, 3); err != nil {
			return "", err
		}
		n, err := atois(args)
		if err != nil {
			return "", err
		}
		step := 1
		if len(n) == 3 {
			step = n[2]
		}
		ps, err := b.GetSlice(n[0], n[1], step)
		if err != nil {
			return "", err
		}
		return formatSlice(ps), nil
	case "SETSLICE":
		if err := wantArgs(cmd, args, 3, -1); err != nil {
			return "", err
		}
		n, err := atois(args[:3])
		if err != nil {
			return "", err
		}
		colors := make([]neopixel.Color, 0, len(args)-3)
		for _, a := range args[3:] {
			c, err := ParseColor(a)
			if err != nil {
				return "", err
			}
			colors = append(colors, c)
		}
		return "OK", b.SetSlice(n[0], n[1], n[2], colors)
	case "FILL":
		if err := wantArgs(cmd, args, 1, 1); err != nil {
			return "", err
		}
		c, err := ParseColor(args[0])
		if err != nil {
			return "", err
		}
		return "OK", b.Fill(c)
	case "BRIGHTNESS":
		if err := wantArgs(cmd, args, 0, 1); err != nil {
			return "", err
		}
		if len(args) == 0 {
			return strconv.FormatFloat(b.Brightness(), 'g', -1, 64), nil
		}
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return "", errors.Wrapf(neopixel.ErrValue, "%q is not a number", args[0])
		}
		return "OK", b.SetBrightness(v)
	case "AUTO":
		if err := wantArgs(cmd, args, 0, 1); err != nil {
			return "", err
		}
		if len(args) == 0 {
			if b.AutoWrite() {
				return "ON", nil
			}
			return "OFF", nil
		}
		switch strings.ToUpper(args[0]) {
		case "ON":
			b.SetAutoWrite(true)
		case "OFF":
			b.SetAutoWrite(false)
		default:
			return "", errors.Errorf("AUTO: want on or off, got %q", args[0])
		}
		return "OK", nil
	case "SHOW":
		return "OK", b.Show()
	case "DUMP":
		return b.String(), nil
	}
	return "", errors.Errorf("unknown command: %s", cmd)
}

// ServeLines reads commands from r until EOF or QUIT and writes one reply
// line per command to w. Command errors are reported to the client and do
// not end the session.
func (s *Session) ServeLines(r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	bw := bufio.NewWriter(w)
	for sc.Scan() {
		l := strings.TrimSpace(sc.Text())
		if l == "" {
			continue
		}
		if strings.EqualFold(l, "QUIT") {
			return bw.Flush()
		}
		fmt.Fprintln(bw, s.reply(l))
		if err := bw.Flush(); err != nil {
			return errors.Wrap(err, "error writing reply")
		}
	}
	return sc.Err()
}

func (s *Session) reply(l string) string {
	out, err := s.Exec(l)
	if err != nil {
		log.Debug().Err(err).Str("line", l).Msg("command failed")
		return "ERR: " + err.Error()
	}
	return out
}
