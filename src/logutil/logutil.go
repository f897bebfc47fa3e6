package logutil

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/c2h5oh/datasize"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultFileName = "screen_capture_extractor.log"
	maxArchives     = 3
)

// Setup points the global logger at a size-rotated file (keeping 3 archives) when
// enableFileLogging is set. Otherwise logs are discarded so stdout stays clean.
// The returned closer releases the log file.
func Setup(enableFileLogging bool, maxSize datasize.ByteSize) io.Closer {
	return SetupFile(enableFileLogging, DefaultFileName, maxSize)
}

func SetupFile(enableFileLogging bool, path string, maxSize datasize.ByteSize) io.Closer {
	zerolog.TimeFieldFormat = time.RFC3339
	if !enableFileLogging {
		log.Logger = zerolog.Nop()
		return nopCloser{}
	}

	w, err := NewRotatingWriter(path, maxSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		log.Logger = zerolog.Nop()
		return nopCloser{}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Caller().Logger()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	return w
}

// SetupConsole writes human-readable logs to w. Used by the command-line tools in verbose mode.
func SetupConsole(w io.Writer, level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}).With().Timestamp().Logger()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// RotatingWriter appends to a file and rotates it to .1, .2, .3 once it would exceed maxSize.
type RotatingWriter struct {
	mu      sync.Mutex
	path    string
	maxSize int64
	f       *os.File
}

func NewRotatingWriter(path string, maxSize datasize.ByteSize) (*RotatingWriter, error) {
	w := &RotatingWriter{path: path, maxSize: int64(maxSize.Bytes())}
	if w.maxSize <= 0 {
		w.maxSize = int64((10 * datasize.MB).Bytes())
	}
	w.rotateIfNeeded(0)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	w.f = f
	return w, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return 0, os.ErrClosed
	}
	if st, err := w.f.Stat(); err == nil && st.Size() > 0 && st.Size()+int64(len(p)) > w.maxSize {
		_ = w.f.Close()
		w.rotateIfNeeded(int64(len(p)))
		nf, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			w.f = nil
			return 0, err
		}
		w.f = nf
	}
	return w.f.Write(p)
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

func (w *RotatingWriter) rotateIfNeeded(incoming int64) {
	st, err := os.Stat(w.path)
	if err != nil || st.Size() == 0 || st.Size()+incoming <= w.maxSize {
		return
	}
	_ = os.Remove(w.archiveName(maxArchives))
	for i := maxArchives - 1; i >= 1; i-- {
		_ = os.Rename(w.archiveName(i), w.archiveName(i+1))
	}
	_ = os.Rename(w.path, w.archiveName(1))
}

func (w *RotatingWriter) archiveName(n int) string { return fmt.Sprintf("%s.%d", w.path, n) }

// Sanitize makes model output safe for a single log line: control characters become
// spaces and the text is cut to limit runes.
func Sanitize(s string, limit int) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	runes := []rune(s)
	if limit > 0 && len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return s
}
