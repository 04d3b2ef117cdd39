// Package state persists what one enginectl invocation knows about the engine
// so that the next invocation can find the process again.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ivyci/enginectl/pkg/engine"
	"github.com/ivyci/enginectl/pkg/logger"
	"github.com/ivyci/enginectl/pkg/types"
	"github.com/ivyci/enginectl/pkg/utils"
)

// DefaultName is the record name used for the configured engine
const DefaultName = "engine"

// ErrNoRecord is returned when no record exists for an engine
var ErrNoRecord = errors.New("no engine record")

// EngineRecord is the persisted view of an engine process
type EngineRecord struct {
	Name      string            `json:"name"`
	EngineDir string            `json:"engineDir"`
	PID       int               `json:"pid"`
	State     types.EngineState `json:"state"`
	Command   string            `json:"command,omitempty"`
	StartedAt time.Time         `json:"startedAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
	LastError string            `json:"lastError,omitempty"`
}

// Manager reads and writes engine records as JSON files in one directory
type Manager struct {
	stateDir string
	logger   logger.Logger
	mu       sync.Mutex
}

// NewManager creates a manager storing records under stateDir
func NewManager(stateDir string, log logger.Logger) *Manager {
	return &Manager{
		stateDir: stateDir,
		logger:   logger.OrNop(log),
	}
}

// DefaultStateDir returns the per-user directory for engine records
func DefaultStateDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "enginectl")
	}
	return filepath.Join(os.TempDir(), "enginectl")
}

// Dir returns the directory records are stored in
func (m *Manager) Dir() string {
	return m.stateDir
}

// Save writes rec atomically
func (m *Manager) Save(rec *EngineRecord) error {
	if rec.Name == "" {
		return errors.New("engine record without name")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal engine record: %w", err)
	}
	if err := utils.WriteFileAtomic(m.path(rec.Name), data, 0644); err != nil {
		return fmt.Errorf("failed to write engine record: %w", err)
	}
	return nil
}

// Load reads the record of name. It returns ErrNoRecord when there is none.
func (m *Manager) Load(name string) (*EngineRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(name)
}

func (m *Manager) load(name string) (*EngineRecord, error) {
	data, err := os.ReadFile(m.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoRecord, name)
		}
		return nil, err
	}

	var rec EngineRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse engine record: %w", err)
	}
	return &rec, nil
}

// Active returns the record of name if its process is still alive. A record
// whose process is gone is removed and reported as ErrNoRecord.
func (m *Manager) Active(name string) (*EngineRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.load(name)
	if err != nil {
		return nil, err
	}
	if engine.ProcessAlive(rec.PID) {
		return rec, nil
	}

	m.logger.Debug("Removing stale engine record",
		logger.WithField("name", name),
		logger.WithField("pid", rec.PID))
	if err := os.Remove(m.path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		m.logger.Warn("Failed to remove stale engine record", logger.WithError(err))
	}
	return nil, fmt.Errorf("%w: %s (process %d is gone)", ErrNoRecord, name, rec.PID)
}

// UpdateState records a state change. lastErr is kept only for ERROR.
func (m *Manager) UpdateState(name string, st types.EngineState, lastErr string) error {
	m.mu.Lock()
	rec, err := m.load(name)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	rec.State = st
	rec.LastError = ""
	if st == types.EngineStateError {
		rec.LastError = lastErr
	}
	return m.Save(rec)
}

// Remove deletes the record of name
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(m.path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove engine record: %w", err)
	}
	return nil
}

// Discover loads every record in the state directory. Unreadable files are skipped.
func (m *Manager) Discover() (map[string]*EngineRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := make(map[string]*EngineRecord)
	files, err := os.ReadDir(m.stateDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return records, nil
		}
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		name := strings.TrimSuffix(file.Name(), ".json")
		rec, err := m.load(name)
		if err != nil {
			m.logger.Warn("Failed to load engine record",
				logger.WithField("name", name),
				logger.WithError(err))
			continue
		}
		records[name] = rec
	}
	return records, nil
}

func (m *Manager) path(name string) string {
	return filepath.Join(m.stateDir, name+".json")
}
