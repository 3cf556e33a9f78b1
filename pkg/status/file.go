package status

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"
)

// FileSink appends `[YYYY-MM-DD HH:MM:SS] message` lines to a file. Each
// write holds an exclusive flock so concurrent processes never interleave.
type FileSink struct {
	mu     sync.Mutex
	path   string
	now    func() time.Time
	logger *log.Logger
}

// NewFileSink creates a sink writing to path. The parent directory is
// created on first write.
func NewFileSink(path string, logger *log.Logger) *FileSink {
	if logger == nil {
		logger = log.Default()
	}
	return &FileSink{path: path, now: time.Now, logger: logger}
}

// Path returns the log file location.
func (s *FileSink) Path() string { return s.path }

// Log implements Sink.
func (s *FileSink) Log(_ context.Context, msg string) {
	if err := s.append(msg); err != nil {
		s.logger.Warn("write install log", "path", s.path, "err", err)
	}
}

func (s *FileSink) append(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	_, err = fmt.Fprintf(f, "[%s] %s\n", s.now().Format(TimeFormat), msg)
	return err
}

// Entries implements Sink. Lines that do not carry a timestamp (multi-line
// subprocess output) are folded into the preceding entry.
func (s *FileSink) Entries(_ context.Context, limit int) ([]Entry, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if e, ok := parseLine(line); ok {
			entries = append(entries, e)
			continue
		}
		if n := len(entries); n > 0 {
			entries[n-1].Message += "\n" + line
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

// Close implements Sink.
func (s *FileSink) Close() error { return nil }

func parseLine(line string) (Entry, bool) {
	if len(line) < len(TimeFormat)+3 || line[0] != '[' {
		return Entry{}, false
	}
	end := strings.IndexByte(line, ']')
	if end != len(TimeFormat)+1 {
		return Entry{}, false
	}
	t, err := time.ParseInLocation(TimeFormat, line[1:end], time.Local)
	if err != nil {
		return Entry{}, false
	}
	return Entry{Time: t, Message: strings.TrimPrefix(line[end+1:], " ")}, true
}

var _ Sink = (*FileSink)(nil)
