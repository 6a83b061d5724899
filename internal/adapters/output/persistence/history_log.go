package persistence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// HistoryEntry is one switchState change. Integer keys keep the log compact.
type HistoryEntry struct {
	Time   time.Time `cbor:"1,keyasint"`
	Status bool      `cbor:"2,keyasint"`
}

var (
	historyEncMode cbor.EncMode
	historyDecMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	}
	historyEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create history CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}
	historyDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create history CBOR decoder mode: %v", err))
	}
}

type historyFile struct {
	file    *os.File
	encoder *cbor.Encoder
	initial time.Time
}

// HistoryLog appends switch history to one CBOR file per accessory under dir.
// The first entry of a file is the accessory's initial time. It is safe for
// concurrent use.
type HistoryLog struct {
	dir string

	mu     sync.Mutex
	files  map[string]*historyFile
	closed bool
}

func NewHistoryLog(dir string) (*HistoryLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	return &HistoryLog{dir: dir, files: make(map[string]*historyFile)}, nil
}

func (h *HistoryLog) path(accessory string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, accessory)
	return filepath.Join(h.dir, name+".history.cbor")
}

func (h *HistoryLog) Record(ctx context.Context, accessory string, at time.Time, on bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return errors.New("history log closed")
	}

	f, err := h.openLocked(accessory)
	if err != nil {
		return err
	}
	if err := f.encoder.Encode(HistoryEntry{Time: at, Status: on}); err != nil {
		return fmt.Errorf("append history of %s: %w", accessory, err)
	}
	if f.initial.IsZero() {
		f.initial = at
	}
	return nil
}

// InitialTime returns the time of the first entry ever recorded for accessory.
func (h *HistoryLog) InitialTime(accessory string) (time.Time, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if f, ok := h.files[accessory]; ok {
		return f.initial, !f.initial.IsZero()
	}

	entries, err := ReadHistory(h.path(accessory))
	if err != nil || len(entries) == 0 {
		return time.Time{}, false
	}
	return entries[0].Time, true
}

func (h *HistoryLog) openLocked(accessory string) (*historyFile, error) {
	if f, ok := h.files[accessory]; ok {
		return f, nil
	}

	path := h.path(accessory)
	var initial time.Time
	entries, err := ReadHistory(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if len(entries) > 0 {
		initial = entries[0].Time
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open history of %s: %w", accessory, err)
	}
	f := &historyFile{file: file, encoder: historyEncMode.NewEncoder(file), initial: initial}
	h.files[accessory] = f
	return f, nil
}

// Close closes every open file. Further records fail.
func (h *HistoryLog) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	var errs []error
	for _, f := range h.files {
		errs = append(errs, f.file.Close())
	}
	h.files = nil
	return errors.Join(errs...)
}

// ReadHistory decodes every entry of a history file in order.
func ReadHistory(path string) ([]HistoryEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var entries []HistoryEntry
	dec := historyDecMode.NewDecoder(file)
	for {
		var e HistoryEntry
		if err := dec.Decode(&e); err != nil {
			if errors.Is(err, io.EOF) {
				return entries, nil
			}
			return entries, fmt.Errorf("decode %s: %w", path, err)
		}
		entries = append(entries, e)
	}
}
