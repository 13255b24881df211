package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"fleahist/internal/domain"
)

// boltMagic is the marker bbolt writes into its first meta page.
const boltMagic = 0xED0CDAED

// legacySnapshot is the single-document JSON format earlier releases
// wrote instead of a database file.
type legacySnapshot struct {
	Sold     []*domain.SoldRecord   `json:"sold"`
	Bought   []*domain.BoughtRecord `json:"bought"`
	Metadata map[string]string      `json:"metadata"`
}

// IsBoltFile reports whether the file at path starts with a bbolt meta
// page. A missing file is not a bolt file.
func IsBoltFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	header := make([]byte, 32)
	if _, err := io.ReadFull(f, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}
		return false, err
	}
	return binary.LittleEndian.Uint32(header[16:20]) == boltMagic, nil
}

// OpenOrMigrate opens the store at path, first converting a legacy JSON
// snapshot found there into database form. The snapshot is kept as a
// ".bak" sibling after a successful conversion.
func OpenOrMigrate(path string) (*Store, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Open(path)
	}

	isBolt, err := IsBoltFile(path)
	if err != nil {
		return nil, fmt.Errorf("inspect record store: %w", err)
	}
	if isBolt {
		return Open(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read legacy snapshot: %w", err)
	}
	var snap legacySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode legacy snapshot: %w", err)
	}

	backup := path + ".bak"
	if err := os.Rename(path, backup); err != nil {
		return nil, fmt.Errorf("back up legacy snapshot: %w", err)
	}

	s, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := s.importSnapshot(&snap); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrate legacy snapshot: %w", err)
	}
	return s, nil
}

func (s *Store) importSnapshot(snap *legacySnapshot) error {
	for _, rec := range snap.Sold {
		if err := s.UpsertSold(rec); err != nil {
			return err
		}
	}
	for _, rec := range snap.Bought {
		if err := s.UpsertBought(rec); err != nil {
			return err
		}
	}
	for k, v := range snap.Metadata {
		if err := s.SetMetadata(k, v); err != nil {
			return err
		}
	}
	return nil
}
