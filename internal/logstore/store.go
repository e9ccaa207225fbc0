// Package logstore keeps door transitions in a fixed-capacity ring file.
//
// Layout: a 4-byte little-endian cursor (next slot to write) followed by
// capacity records of 13 bytes each. A record with a zero timestamp has never
// been written. The capacity is fixed when the file is created and recovered
// from the file size afterwards.
package logstore

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
)

const (
	// RecordSize is the encoded size of one Record.
	RecordSize = 13
	headerSize = 4

	DefaultCapacity = 100
	MaxCapacity     = 500

	// SwitchNotApplicable marks a record taken without a switch sensor.
	SwitchNotApplicable uint8 = 255
)

var (
	// ErrBadCursor is returned when the persisted cursor does not address a slot.
	ErrBadCursor = errors.New("logstore: cursor out of range")
	// ErrCorrupt is returned when the file size does not match the layout.
	ErrCorrupt = errors.New("logstore: file size does not match layout")
)

// Record is one persisted transition.
type Record struct {
	Timestamp int64 // UTC seconds; 0 means never written
	Status    uint16
	Distance  uint16
	Switch    uint8
}

// Empty reports whether r is an unwritten slot.
func (r Record) Empty() bool {
	return r.Timestamp == 0
}

func (r Record) encode(b []byte) {
	binary.LittleEndian.PutUint64(b[0:8], uint64(r.Timestamp))
	binary.LittleEndian.PutUint16(b[8:10], r.Status)
	binary.LittleEndian.PutUint16(b[10:12], r.Distance)
	b[12] = r.Switch
}

func decodeRecord(b []byte) Record {
	return Record{
		Timestamp: int64(binary.LittleEndian.Uint64(b[0:8])),
		Status:    binary.LittleEndian.Uint16(b[8:10]),
		Distance:  binary.LittleEndian.Uint16(b[10:12]),
		Switch:    b[12],
	}
}

// ClampCapacity bounds a configured capacity to [1, MaxCapacity]; zero and
// negative values select DefaultCapacity.
func ClampCapacity(n int) int {
	switch {
	case n <= 0:
		return DefaultCapacity
	case n > MaxCapacity:
		return MaxCapacity
	}
	return n
}

// Store is the single appender for one log file. Not safe for concurrent use.
type Store struct {
	path     string
	capacity int
}

// New returns a store for path. capacity applies only when the file is created.
func New(path string, capacity int) *Store {
	return &Store{path: path, capacity: ClampCapacity(capacity)}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Capacity returns the slot count of the existing file, or the configured
// capacity if the file does not exist yet.
func (s *Store) Capacity() (int, error) {
	fi, err := os.Stat(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s.capacity, nil
	}
	if err != nil {
		return 0, fmt.Errorf("stat log: %w", err)
	}
	return capacityFromSize(fi.Size())
}

func capacityFromSize(size int64) (int, error) {
	body := size - headerSize
	if body < RecordSize || body%RecordSize != 0 {
		return 0, fmt.Errorf("%w: %d bytes", ErrCorrupt, size)
	}
	return int(body / RecordSize), nil
}

// Append writes r at the cursor and advances the cursor modulo capacity.
// The record is written before the cursor, so a crash in between leaves the
// cursor one slot behind and the next append overwrites the same slot.
func (s *Store) Append(r Record) error {
	f, err := os.OpenFile(s.path, os.O_RDWR, 0)
	if errors.Is(err, os.ErrNotExist) {
		return s.create(r)
	}
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat log: %w", err)
	}
	capacity, err := capacityFromSize(fi.Size())
	if err != nil {
		return err
	}

	var hdr [headerSize]byte
	if _, err := f.ReadAt(hdr[:], 0); err != nil {
		return fmt.Errorf("read cursor: %w", err)
	}
	cur := binary.LittleEndian.Uint32(hdr[:])
	if int(cur) >= capacity {
		return fmt.Errorf("%w: %d >= %d", ErrBadCursor, cur, capacity)
	}

	var rec [RecordSize]byte
	r.encode(rec[:])
	if _, err := f.WriteAt(rec[:], headerSize+int64(cur)*RecordSize); err != nil {
		return fmt.Errorf("write record %d: %w", cur, err)
	}

	next := (cur + 1) % uint32(capacity)
	binary.LittleEndian.PutUint32(hdr[:], next)
	if _, err := f.WriteAt(hdr[:], 0); err != nil {
		return fmt.Errorf("write cursor: %w", err)
	}
	return f.Sync()
}

// create pre-fills every slot with the zero sentinel and stores r in slot 0.
func (s *Store) create(r Record) error {
	buf := make([]byte, headerSize+s.capacity*RecordSize)
	next := uint32(1 % s.capacity)
	binary.LittleEndian.PutUint32(buf[:headerSize], next)
	r.encode(buf[headerSize : headerSize+RecordSize])

	if err := os.WriteFile(s.path, buf, 0o644); err != nil {
		return fmt.Errorf("create log: %w", err)
	}
	log.Debug().Str("path", s.path).Int("capacity", s.capacity).Msg("log file created")
	return nil
}

// Cursor returns the next slot to be written.
func (s *Store) Cursor() (int, error) {
	rd, err := s.Open()
	if err != nil {
		return 0, err
	}
	defer rd.Close()
	return rd.Cursor(), nil
}

// Reset removes the log file. A missing file is not an error.
func (s *Store) Reset() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove log: %w", err)
	}
	return nil
}

// ReadAll returns every written record in slot order.
func (s *Store) ReadAll() ([]Record, error) {
	rd, err := s.Open()
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer rd.Close()

	var out []Record
	for {
		r, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		if !r.Empty() {
			out = append(out, r)
		}
	}
}

// Reader scans slots from 0 to capacity-1, sentinels included.
type Reader struct {
	f      *os.File
	br     *bufio.Reader
	cursor int
}

// Open starts a sequential scan. The returned error wraps os.ErrNotExist when
// nothing has been logged yet.
func (s *Store) Open() (*Reader, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat log: %w", err)
	}
	capacity, err := capacityFromSize(fi.Size())
	if err != nil {
		f.Close()
		return nil, err
	}

	br := bufio.NewReader(f)
	var hdr [headerSize]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		f.Close()
		return nil, fmt.Errorf("read cursor: %w", err)
	}
	cur := binary.LittleEndian.Uint32(hdr[:])
	if int(cur) >= capacity {
		f.Close()
		return nil, fmt.Errorf("%w: %d >= %d", ErrBadCursor, cur, capacity)
	}
	return &Reader{f: f, br: br, cursor: int(cur)}, nil
}

// Cursor returns the cursor read when the scan started.
func (r *Reader) Cursor() int {
	return r.cursor
}

// Next returns the next slot, or io.EOF after the last one.
func (r *Reader) Next() (Record, error) {
	var b [RecordSize]byte
	if _, err := io.ReadFull(r.br, b[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Record{}, fmt.Errorf("read record: %w", err)
		}
		return Record{}, err
	}
	return decodeRecord(b[:]), nil
}

// Close releases the file.
func (r *Reader) Close() error {
	return r.f.Close()
}
