package rawlog

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"time"
)

// FileSink appends one JSON line per stored payload. It is the local stand-in
// for the remote document store: same write-only contract, file durability.
type FileSink struct {
	f   *os.File
	w   *bufio.Writer
	now func() time.Time
}

func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileSink{
		f:   f,
		w:   bufio.NewWriter(f),
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *FileSink) Store(ctx context.Context, publisherEmail string, body any) error {
	record := map[string]any{
		"publisher_email": publisherEmail,
		"timestamp":       s.now().Format(time.RFC3339),
		"body":            body,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if _, err := s.w.Write(data); err != nil {
		return err
	}
	return s.w.WriteByte('\n')
}

func (s *FileSink) Close() error {
	if err := s.w.Flush(); err != nil {
		_ = s.f.Close()
		return err
	}
	return s.f.Close()
}
