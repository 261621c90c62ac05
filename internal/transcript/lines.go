package transcript

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// LineSource treats each non-empty line of r as one utterance. It backs the
// typed-transcript mode and replayed call logs.
type LineSource struct {
	lines chan string
	err   error
}

func NewLineSource(r io.Reader) *LineSource {
	s := &LineSource{lines: make(chan string, 16)}
	go s.scan(r)
	return s
}

func (s *LineSource) scan(r io.Reader) {
	defer close(s.lines)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s.lines <- line
	}
	s.err = scanner.Err()
}

// Next returns the next line. Once the reader is exhausted it returns
// ErrSourceClosed, or the read error that ended the scan.
func (s *LineSource) Next(ctx context.Context) (string, error) {
	select {
	case line, ok := <-s.lines:
		if !ok {
			if s.err != nil {
				return "", fmt.Errorf("read transcript lines: %w", s.err)
			}
			return "", ErrSourceClosed
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
