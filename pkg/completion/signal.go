package completion

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
)

// Node passes the IPC channel of a child spawned with an "ipc" stdio entry
// through these variables.
const (
	EnvNodeChannelFD            = "NODE_CHANNEL_FD"
	EnvNodeChannelSerialization = "NODE_CHANNEL_SERIALIZATION_MODE"
)

// ErrUnsupportedSerialization is returned for IPC channels not using JSON framing
var ErrUnsupportedSerialization = errors.New("unsupported IPC serialization mode")

// Signaler delivers the completion message to whoever supervises the process
type Signaler interface {
	Signal(message string) error
}

// SignalerFunc adapts a function to Signaler
type SignalerFunc func(message string) error

// Signal calls f
func (f SignalerFunc) Signal(message string) error {
	return f(message)
}

// NoopSignaler is used when there is no parent process
type NoopSignaler struct{}

func (NoopSignaler) Signal(string) error { return nil }

// IPCSignaler writes messages to a Node IPC channel using its JSON framing:
// one JSON value per line.
type IPCSignaler struct {
	mu sync.Mutex
	w  io.Writer
}

// NewIPCSignaler writes framed messages to w
func NewIPCSignaler(w io.Writer) *IPCSignaler {
	return &IPCSignaler{w: w}
}

// Signal implements Signaler
func (s *IPCSignaler) Signal(message string) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("failed to signal parent: %w", err)
	}
	return nil
}

// ParentSignaler returns a signaler for the IPC channel inherited from a Node
// parent, or a NoopSignaler when the process was not spawned with one.
func ParentSignaler() (Signaler, error) {
	return signalerFromEnv(os.Getenv)
}

func signalerFromEnv(getenv func(string) string) (Signaler, error) {
	raw := getenv(EnvNodeChannelFD)
	if raw == "" {
		return NoopSignaler{}, nil
	}

	fd, err := strconv.Atoi(raw)
	if err != nil || fd < 0 {
		return nil, fmt.Errorf("invalid %s %q", EnvNodeChannelFD, raw)
	}
	if mode := getenv(EnvNodeChannelSerialization); mode != "" && mode != "json" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSerialization, mode)
	}

	return NewIPCSignaler(os.NewFile(uintptr(fd), "node-ipc")), nil
}
