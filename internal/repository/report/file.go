package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/fleetpatch/internal/config"
	"github.com/oshokin/fleetpatch/internal/domain/fleet"
)

// Repository defines persistence operations for run summaries.
type Repository interface {
	Save(ctx context.Context, summary *fleet.RunSummary) error
	Load(ctx context.Context) (*fleet.RunSummary, error)
}

// FileRepository persists the run summary to a YAML file on disk so
// pipelines and operators can inspect the outcome of the last run.
type FileRepository struct {
	// path is the filesystem location of the YAML report file.
	path string
	// mu protects concurrent access to the report file.
	mu sync.Mutex
}

// ErrNotFound is returned when no report has been written yet.
var ErrNotFound = errors.New("report not found")

// NewFileRepository creates a repository that reads/writes YAML at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Save writes the summary to disk.
func (r *FileRepository) Save(_ context.Context, summary *fleet.RunSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write report file: %w", err)
	}

	return nil
}

// Load reads the most recently written summary from disk.
func (r *FileRepository) Load(_ context.Context) (*fleet.RunSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read report file: %w", err)
	}

	var summary fleet.RunSummary
	if err = yaml.Unmarshal(contents, &summary); err != nil {
		return nil, fmt.Errorf("decode report file: %w", err)
	}

	return &summary, nil
}
