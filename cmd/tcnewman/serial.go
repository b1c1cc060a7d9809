package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// stdio joins the host terminal into one serial backend.
type stdio struct {
	io.Reader
	io.Writer
}

// nullBackend discards output and never produces input.
type nullBackend struct{}

func (nullBackend) Read([]byte) (int, error)    { return 0, io.EOF }
func (nullBackend) Write(p []byte) (int, error) { return len(p), nil }

// openSerialBackends resolves backend descriptions. The returned cleanup
// closes any files.
func openSerialBackends(descs []string) ([]io.ReadWriter, func(), error) {
	var (
		backends []io.ReadWriter
		closers  []func() error
		usedTTY  bool
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	for i, desc := range descs {
		switch {
		case desc == "stdio":
			if usedTTY {
				cleanup()
				return nil, nil, fmt.Errorf("serial%d: stdio is already in use", i)
			}
			usedTTY = true
			backends = append(backends, stdio{Reader: os.Stdin, Writer: os.Stdout})
		case desc == "null" || desc == "none" || desc == "":
			backends = append(backends, nullBackend{})
		case strings.HasPrefix(desc, "file:"):
			f, err := os.OpenFile(strings.TrimPrefix(desc, "file:"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("serial%d: %w", i, err)
			}
			closers = append(closers, f.Close)
			backends = append(backends, f)
		default:
			cleanup()
			return nil, nil, fmt.Errorf("serial%d: %w: %q", i, errUnknownBackend, desc)
		}
	}
	return backends, cleanup, nil
}

var errUnknownBackend = errors.New("unknown serial backend")
