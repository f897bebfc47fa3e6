package table

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	DefaultLockTimeout = 5 * time.Second
	lockRetryDelay     = 50 * time.Millisecond
	// One page; smaller appends land with a single write(2).
	maxInPlaceAppend = 4096
)

// ErrLocked is returned when another process holds the table lock for too long.
var ErrLocked = errors.New("table is locked by another process")

// Store appends rows to a single CSV file, widening its header when new columns show up.
// The file is re-read on every call; nothing is cached between calls.
type Store struct {
	fs   afero.Fs
	path string

	lock        *flock.Flock
	lockTimeout time.Duration
}

// Outcome describes what an Append did to the file.
type Outcome struct {
	Header    []string
	Appended  int
	Created   bool
	Rewritten bool
}

func NewStore(fs afero.Fs, path string) *Store {
	return &Store{fs: fs, path: path}
}

func (s *Store) Path() string { return s.path }

// WithFileLock makes Append and RemoveLast hold an exclusive lock on "<path>.lock" while
// they touch the file, so the resident app and CLI runs do not interleave writes. The
// lock lives on the OS filesystem whatever fs the store uses.
func (s *Store) WithFileLock(timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	s.lock = flock.New(s.path + ".lock")
	s.lockTimeout = timeout
	return s
}

func (s *Store) locked(fn func() error) error {
	if s.lock == nil {
		return fn()
	}
	if err := os.MkdirAll(filepath.Dir(s.lock.Path()), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", s.lock.Path(), err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.lockTimeout)
	defer cancel()
	ok, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if !ok {
		if err == nil || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", ErrLocked, s.path)
		}
		return fmt.Errorf("failed to lock table %s: %w", s.path, err)
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			log.Warn().Err(err).Str("path", s.lock.Path()).Msg("failed to release table lock")
		}
	}()
	return fn()
}

// Load reads the store's file. See Load.
func (s *Store) Load() (Table, error) {
	return Load(s.fs, s.path)
}

// Append writes rows to the end of the table. When the rows carry columns the header does
// not have yet, the whole file is rewritten with the wider header and existing rows get ""
// in the new columns. Otherwise the rows are appended in place. A row without any field
// is written as a blank row against the header; on a missing file with no columns at all
// Append does nothing.
func (s *Store) Append(rows []Row) (out Outcome, err error) {
	err = s.locked(func() error {
		out, err = s.append(rows)
		return err
	})
	return out, err
}

func (s *Store) append(rows []Row) (Outcome, error) {
	raw, exists, err := s.read()
	if err != nil {
		return Outcome{}, err
	}

	if !exists {
		header, _ := ReconcileHeader(nil, rows)
		// Without any column there is nothing a row could hold.
		if len(header) == 0 {
			return Outcome{}, nil
		}
		if err := s.rewrite(header, nil, rows); err != nil {
			return Outcome{}, err
		}
		log.Debug().Str("path", s.path).Int("rows", len(rows)).Int("columns", len(header)).Msg("table created")
		return Outcome{Header: header, Appended: len(rows), Created: true}, nil
	}

	if len(rows) == 0 {
		return Outcome{Header: raw.header}, nil
	}

	header, widen := ReconcileHeader(raw.header, rows)
	if len(header) == 0 {
		return Outcome{Header: header}, nil
	}
	if !widen {
		if err := s.appendRecords(raw, rows); err != nil {
			return Outcome{}, err
		}
		return Outcome{Header: header, Appended: len(rows)}, nil
	}

	for i, rec := range raw.records {
		if len(rec) > len(raw.header) {
			return Outcome{}, fmt.Errorf("%w: %s row %d has %d fields, header has %d",
				ErrRowWidth, s.path, i+1, len(rec), len(raw.header))
		}
	}
	if err := s.rewrite(header, raw.records, rows); err != nil {
		return Outcome{}, err
	}
	log.Debug().Str("path", s.path).Strs("added", header[len(raw.header):]).Msg("table header widened")
	return Outcome{Header: header, Appended: len(rows), Rewritten: true}, nil
}

// RemoveLast drops the final data row. It reports false, and leaves the file alone,
// when there is no file or no data row. The header is kept as is.
func (s *Store) RemoveLast() (removed bool, err error) {
	err = s.locked(func() error {
		removed, err = s.removeLast()
		return err
	})
	return removed, err
}

func (s *Store) removeLast() (bool, error) {
	raw, exists, err := s.read()
	if err != nil {
		return false, err
	}
	if !exists || len(raw.records) == 0 {
		return false, nil
	}

	kept := raw.records[:len(raw.records)-1]
	err = WriteAtomic(s.fs, s.path, func(w io.Writer) error {
		return encode(w, raw.header, kept, false)
	})
	if err != nil {
		return false, fmt.Errorf("failed to remove last row of %s: %w", s.path, err)
	}
	return true, nil
}

func (s *Store) read() (rawTable, bool, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, os.ErrNotExist) {
		return rawTable{}, false, nil
	}
	if err != nil {
		return rawTable{}, false, fmt.Errorf("failed to read table %s: %w", s.path, err)
	}
	raw, err := parse(data)
	if err != nil {
		return rawTable{}, false, fmt.Errorf("failed to parse table %s: %w", s.path, err)
	}
	return raw, true, nil
}

func (s *Store) rewrite(header []string, existing [][]string, rows []Row) error {
	if err := checkHeader(header); err != nil {
		return err
	}
	records := make([][]string, 0, len(existing)+len(rows))
	records = append(records, existing...)
	for _, r := range rows {
		records = append(records, r.Render(header))
	}
	err := WriteAtomic(s.fs, s.path, func(w io.Writer) error {
		return encode(w, header, records, false)
	})
	if err != nil {
		return fmt.Errorf("failed to write table %s: %w", s.path, err)
	}
	return nil
}

// appendRecords adds rows with a single write. A failed or short write is rolled back by
// truncating the file to its previous size. Writes larger than maxInPlaceAppend go through
// a full rewrite instead, so readers never see part of them.
func (s *Store) appendRecords(raw rawTable, rows []Row) error {
	var buf bytes.Buffer
	if !raw.endsWithNewline {
		buf.WriteByte('\n')
	}
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = r.Render(raw.header)
	}
	if err := encode(&buf, raw.header, records, true); err != nil {
		return err
	}
	if buf.Len() > maxInPlaceAppend {
		return s.rewrite(raw.header, raw.records, rows)
	}

	f, err := s.fs.OpenFile(s.path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return fmt.Errorf("failed to open table %s: %w", s.path, err)
	}

	n, err := f.Write(buf.Bytes())
	if err == nil && n < buf.Len() {
		err = io.ErrShortWrite
	}
	if err == nil {
		err = f.Sync()
	}
	if err != nil {
		if terr := f.Truncate(raw.size); terr != nil {
			log.Error().Err(terr).Str("path", s.path).Msg("failed to roll back partial append")
		}
		_ = f.Close()
		return fmt.Errorf("failed to append to table %s: %w", s.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close table %s: %w", s.path, err)
	}
	return nil
}
