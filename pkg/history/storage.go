// Package history keeps receipts of finished swap attempts in a JSON file.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultFileName = ".stellar-swap-history.json"
)

// Record is the receipt of one swap attempt
type Record struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Account       string    `json:"account"`
	PayToken      string    `json:"pay_token"`
	ReceiveToken  string    `json:"receive_token"`
	PayAmount     string    `json:"pay_amount"`
	ReceiveAmount string    `json:"receive_amount"`
	TxHash        string    `json:"tx_hash,omitempty"`
	Outcome       string    `json:"outcome"`
	Message       string    `json:"message,omitempty"`
	Polls         int       `json:"polls"`
}

type fileFormat struct {
	Records []Record `json:"records"`
}

// Storage is a file-backed receipt store
type Storage struct {
	filePath string
	mu       sync.RWMutex
	records  []Record
}

// NewStorage opens the store at filePath, or ~/.stellar-swap-history.json when empty
func NewStorage(filePath string) (*Storage, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultFileName)
	}

	s := &Storage{filePath: filePath}
	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return s, nil
}

func (s *Storage) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}
	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to unmarshal history: %w", err)
	}
	s.records = f.Records
	return nil
}

// saveLocked writes the records atomically; the caller holds s.mu
func (s *Storage) saveLocked() error {
	data, err := json.MarshalIndent(fileFormat{Records: s.records}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := os.Rename(tempFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Append stores r, assigning an ID and timestamp when missing
func (s *Storage) Append(r Record) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	if err := s.saveLocked(); err != nil {
		s.records = s.records[:len(s.records)-1]
		return err
	}
	return nil
}

// List returns all records, newest first
func (s *Storage) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.records, func(Record) bool { return true })
}

// ListByAccount returns the records of one account, newest first
func (s *Storage) ListByAccount(account string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.records, func(r Record) bool { return strings.EqualFold(r.Account, account) })
}

// Get finds a record by ID or transaction hash
func (s *Storage) Get(idOrHash string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.ID == idOrHash || (r.TxHash != "" && r.TxHash == idOrHash) {
			return r, nil
		}
	}
	return Record{}, fmt.Errorf("record '%s' not found", idOrHash)
}

// FilePath returns the storage file path
func (s *Storage) FilePath() string {
	return s.filePath
}

func newestFirst(records []Record, keep func(Record) bool) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}
