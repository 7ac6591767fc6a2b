// Package snapshot persists parsed series models between runs. Blobs are
// JSON-encoded, lz4-block-compressed and stored in a pebble database keyed
// by manufacturer, series and the source file's identity, so a changed
// pdata.ebase invalidates its snapshot naturally.
package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/cockroachdb/pebble"
	"github.com/goccy/go-json"
	"github.com/pierrec/lz4"
	"go.uber.org/zap"

	"github.com/INSPIRATIONlabs/ofmlgo/internal/ocd"
)

var (
	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("snapshot store is closed")

	// ErrNotFound indicates no snapshot exists for the key.
	ErrNotFound = errors.New("snapshot not found")

	// ErrCorrupt indicates an undecodable snapshot blob. Callers delete and
	// reparse; a snapshot problem is never fatal.
	ErrCorrupt = errors.New("snapshot corrupt")
)

// Store is a pebble-backed snapshot database. Safe for concurrent use.
type Store struct {
	db  *pebble.DB
	log *zap.Logger
}

// Open creates or opens the store at dir.
func Open(dir string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// SourceKey identifies the exact source file a snapshot was built from.
func SourceKey(manufacturer, series, path string) ([]byte, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("%s|%s|%d|%d",
		manufacturer, series, st.ModTime().UnixNano(), st.Size())), nil
}

// Put stores a model under the key.
func (s *Store) Put(key []byte, m *ocd.Model) error {
	if s.db == nil {
		return ErrClosed
	}
	blob, err := encode(m)
	if err != nil {
		return err
	}
	return s.db.Set(key, blob, pebble.Sync)
}

// Get loads a model. Returns ErrNotFound when no snapshot exists and
// ErrCorrupt when the blob does not decode; the corrupt entry is deleted.
func (s *Store) Get(key []byte) (*ocd.Model, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	blob, closer, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	buf := make([]byte, len(blob))
	copy(buf, blob)
	closer.Close()

	m, err := decode(buf)
	if err != nil {
		s.log.Warn("deleting corrupt snapshot", zap.ByteString("key", key), zap.Error(err))
		_ = s.db.Delete(key, pebble.Sync)
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return m, nil
}

// Delete removes one snapshot.
func (s *Store) Delete(key []byte) error {
	if s.db == nil {
		return ErrClosed
	}
	return s.db.Delete(key, pebble.Sync)
}

// encode renders a model as lz4-compressed JSON with a length header for
// decompression sizing.
func encode(m *ocd.Model) ([]byte, error) {
	raw, err := json.Marshal(toDTO(m))
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	out := make([]byte, 4+lz4.CompressBlockBound(len(raw)))
	binary.BigEndian.PutUint32(out, uint32(len(raw)))
	n, err := lz4.CompressBlock(raw, out[4:], nil)
	if err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	if n == 0 || n >= len(raw) {
		// Incompressible; a zero size marker means the payload is raw JSON.
		out = make([]byte, 4+len(raw))
		copy(out[4:], raw)
		return out, nil
	}
	return out[:4+n], nil
}

func decode(blob []byte) (*ocd.Model, error) {
	if len(blob) < 4 {
		return nil, errors.New("blob too short")
	}
	size := binary.BigEndian.Uint32(blob)
	var raw []byte
	if size == 0 {
		raw = blob[4:]
	} else {
		raw = make([]byte, size)
		n, err := lz4.UncompressBlock(blob[4:], raw)
		if err != nil {
			return nil, err
		}
		raw = raw[:n]
	}
	var dto modelDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, err
	}
	return fromDTO(&dto), nil
}
