package eventstream

import (
	"bufio"
	"io"
	"strings"
)

// ConnectedFrame is the reserved payload the server sends right after the
// stream opens.
const ConnectedFrame = "connected"

// Frame is one unit of payload read from the stream.
type Frame struct {
	// Event is the SSE event name, empty for the default event.
	Event string
	Data  string
}

// IsConnected reports whether f is the connection acknowledgement.
func (f Frame) IsConnected() bool {
	return strings.TrimSpace(f.Data) == ConnectedFrame
}

// Scanner reads frames from an event stream.
//
// Standard SSE framing is supported: "data:" lines accumulate until a blank
// line, multiple data lines are joined with "\n", comment lines starting
// with ":" and the id and retry fields are ignored. A line that is not an
// SSE field at all is taken as a complete frame on its own, which covers
// servers that write bare newline-delimited payloads.
type Scanner struct {
	reader  *bufio.Reader
	current Frame
	pending *Frame
	err     error
}

func NewScanner(r io.Reader) *Scanner {
	return &Scanner{reader: bufio.NewReaderSize(r, 64*1024)}
}

// Next advances to the next frame. It returns false at end of stream or on
// a read error; Err tells them apart.
func (s *Scanner) Next() bool {
	s.current = Frame{}
	if s.pending != nil {
		s.current, s.pending = *s.pending, nil
		return true
	}
	if s.err != nil {
		return false
	}

	var (
		data    []string
		event   string
		hasData bool
	)
	emit := func() bool {
		s.current = Frame{Event: event, Data: strings.Join(data, "\n")}
		return true
	}

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil && line == "" {
			s.err = err
			if err == io.EOF && hasData {
				return emit()
			}
			return false
		}
		if err != nil {
			// Partial last line; process it, then stop on the next call.
			s.err = err
		}

		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if hasData {
				return emit()
			}
			event = ""
		case strings.HasPrefix(line, ":"):
		default:
			field, value, ok := strings.Cut(line, ":")
			if !ok || !isField(field) {
				if hasData {
					// Bare line ends a pending SSE event without a blank line.
					s.current = Frame{Event: event, Data: strings.Join(data, "\n")}
					s.pending = &Frame{Data: line}
					return true
				}
				s.current = Frame{Data: line}
				return true
			}
			value = strings.TrimPrefix(value, " ")
			switch field {
			case "data":
				data = append(data, value)
				hasData = true
			case "event":
				event = value
			}
		}

		if s.err != nil {
			if hasData {
				return emit()
			}
			return false
		}
	}
}

func isField(name string) bool {
	switch name {
	case "data", "event", "id", "retry":
		return true
	}
	return false
}

// Frame returns the frame read by the last successful Next.
func (s *Scanner) Frame() Frame {
	return s.current
}

// Err returns the read error that stopped the scanner, or nil on a clean
// end of stream.
func (s *Scanner) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}
