// Package sink persists the full, unfiltered record stream to disk as a
// line-oriented NDJSON log, with optional size-based rotation into
// zstd-compressed archives. The sink consumes the interceptor's preview
// stream; its format is not part of the console's hard contract.
package sink

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/quillside/logdeck/internal/model"
)

const defaultBufSize = 64 * 1024 // 64KB

// line is the serialized shape of one record.
type line struct {
	ID         uint64 `json:"id"`
	TS         int64  `json:"ts"` // unix nanoseconds
	Severity   string `json:"severity"`
	Source     string `json:"source"`
	Message    string `json:"message"`
	Repeat     int    `json:"repeat,omitempty"`
	StackTrace string `json:"stacktrace,omitempty"`
}

// header opens every session file; readers use it to tell sessions apart.
type header struct {
	Session string `json:"session"`
	Started int64  `json:"started"`
}

// Option configures a Sink.
type Option func(*Sink)

// WithMaxSize sets the file size (bytes) at which rotation triggers.
// 0 (default) disables rotation.
func WithMaxSize(bytes int64) Option {
	return func(s *Sink) { s.maxSize = bytes }
}

// WithCompression zstd-compresses rotated files.
func WithCompression(on bool) Option {
	return func(s *Sink) { s.compress = on }
}

// WithBufSize sets the bufio.Writer buffer size. Default: 64KB.
func WithBufSize(bytes int) Option {
	return func(s *Sink) { s.bufSize = bytes }
}

// Sink is an append-only NDJSON writer. Write errors never propagate into
// the logging pipeline; callers read Errors() if they care.
type Sink struct {
	mu       sync.Mutex
	f        *os.File
	w        *bufio.Writer
	path     string
	session  string
	maxSize  int64
	compress bool
	bufSize  int
	written  int64
	errs     int
	enc      *zstd.Encoder
}

// New creates a sink appending to path, stamping a fresh session header.
func New(path string, opts ...Option) (*Sink, error) {
	s := &Sink{
		path:    path,
		session: uuid.New().String(),
		bufSize: defaultBufSize,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("sink: %w", err)
		}
		s.enc = enc
	}
	if err := s.openFile(); err != nil {
		return nil, err
	}
	if err := s.writeHeader(); err != nil {
		s.f.Close()
		return nil, err
	}
	return s, nil
}

// SessionID returns this sink's session identifier.
func (s *Sink) SessionID() string {
	return s.session
}

// Errors returns the number of write failures swallowed so far.
func (s *Sink) Errors() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errs
}

// Write appends one record as a JSON line, rotating first when the size
// threshold is crossed.
func (s *Sink) Write(rec *model.LogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(line{
		ID:         rec.ID,
		TS:         rec.Timestamp.UnixNano(),
		Severity:   rec.Severity.String(),
		Source:     rec.Source,
		Message:    rec.Message,
		Repeat:     rec.RepeatCount,
		StackTrace: rec.StackTrace,
	})
	if err != nil {
		s.errs++
		return fmt.Errorf("sink: marshal: %w", err)
	}
	data = append(data, '\n')

	if s.maxSize > 0 && s.written+int64(len(data)) > s.maxSize {
		if err := s.rotate(); err != nil {
			s.errs++
			return fmt.Errorf("sink: rotate: %w", err)
		}
	}

	n, err := s.w.Write(data)
	s.written += int64(n)
	if err != nil {
		s.errs++
		return fmt.Errorf("sink: write: %w", err)
	}
	return nil
}

// Flush pushes buffered lines to the OS.
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Flush()
}

// Close flushes and closes the file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.w.Flush(); err != nil {
		s.f.Close()
		return fmt.Errorf("sink: flush: %w", err)
	}
	return s.f.Close()
}

func (s *Sink) openFile() error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("sink: open %s: %w", s.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("sink: stat %s: %w", s.path, err)
	}
	s.f = f
	s.w = bufio.NewWriterSize(f, s.bufSize)
	s.written = info.Size()
	return nil
}

func (s *Sink) writeHeader() error {
	data, err := json.Marshal(header{Session: s.session, Started: time.Now().UnixNano()})
	if err != nil {
		return fmt.Errorf("sink: header: %w", err)
	}
	data = append(data, '\n')
	n, err := s.w.Write(data)
	s.written += int64(n)
	if err != nil {
		return fmt.Errorf("sink: header: %w", err)
	}
	return nil
}

// rotate closes the current file and moves it aside under a timestamped
// archive name, compressing the archive when enabled, then reopens a fresh
// file carrying the same session.
func (s *Sink) rotate() error {
	if err := s.w.Flush(); err != nil {
		return err
	}
	if err := s.f.Close(); err != nil {
		return err
	}

	archive := fmt.Sprintf("%s.%d", s.path, time.Now().UnixNano())
	if err := os.Rename(s.path, archive); err != nil {
		return err
	}
	if s.compress {
		if err := s.compressArchive(archive); err != nil {
			return err
		}
	}

	s.written = 0
	return s.openFile()
}

func (s *Sink) compressArchive(archive string) error {
	raw, err := os.ReadFile(archive)
	if err != nil {
		return err
	}
	packed := s.enc.EncodeAll(raw, make([]byte, 0, len(raw)/2))
	if err := os.WriteFile(archive+".zst", packed, 0644); err != nil {
		return err
	}
	return os.Remove(archive)
}
