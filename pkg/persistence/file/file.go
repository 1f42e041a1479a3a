// Package file provides a JSON-on-disk persistence implementation. Each
// record is one file; writes go through a temp file plus rename so a record
// is always observed whole.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/veilstream/conduit/pkg/persistence"
)

// Persistence implements persistence.Persistence on top of a directory tree:
// workflows/, executions/, logs/<execution_id>/, schedules/, approvals/.
type Persistence struct {
	root string

	workflows  *WorkflowRepository
	executions *ExecutionRepository
	logs       *LogRepository
	schedules  *ScheduleRepository
	approvals  *ApprovalRepository
}

// NewPersistence creates a file-backed persistence rooted at the given
// directory. A file:// prefix is stripped, matching the database-url flag
// format.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)
	store := &store{root: cleanRoot}

	return &Persistence{
		root:       cleanRoot,
		workflows:  &WorkflowRepository{store: store},
		executions: &ExecutionRepository{store: store},
		logs:       &LogRepository{store: store},
		schedules:  &ScheduleRepository{store: store},
		approvals:  &ApprovalRepository{store: store},
	}
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository   { return p.workflows }
func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository { return p.executions }
func (p *Persistence) LogRepository() persistence.LogRepository             { return p.logs }
func (p *Persistence) ScheduleRepository() persistence.ScheduleRepository   { return p.schedules }
func (p *Persistence) ApprovalRepository() persistence.ApprovalRepository   { return p.approvals }

func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// store holds the shared write lock and JSON file helpers.
type store struct {
	root string
	mu   sync.RWMutex
}

func (s *store) write(dir, id string, record any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fullDir := filepath.Join(s.root, dir)
	if err := os.MkdirAll(fullDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", fullDir, err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", id, err)
	}

	target := filepath.Join(fullDir, id+".json")
	tmp := target + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}

	return os.Rename(tmp, target)
}

func (s *store) read(dir, id string, record any) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(s.root, dir, id+".json"))
	if os.IsNotExist(err) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, json.Unmarshal(data, record)
}

func (s *store) remove(dir, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(filepath.Join(s.root, dir, id+".json"))
	if os.IsNotExist(err) {
		return false, nil
	}

	return err == nil, err
}

// ids lists the record ids stored under dir.
func (s *store) ids(dir string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	root := os.DirFS(filepath.Join(s.root, dir))

	files, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(files))
	for _, file := range files {
		ids = append(ids, strings.TrimSuffix(file, ".json"))
	}

	return ids, nil
}
