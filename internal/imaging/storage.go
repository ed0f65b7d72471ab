package imaging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/domain/shared"
)

// Result file suffixes per job type.
const (
	suffixSegmentation = "segmentation"
	suffixTissueMask   = "tissue_mask"
)

// Storage persists job result documents under the configured result
// directory, one JSON file per job.
type Storage struct {
	dir string
}

// NewStorage creates the result directory if needed.
func NewStorage(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create result directory: %w", err)
	}
	return &Storage{dir: dir}, nil
}

// Save writes a result document and returns its path.
func (s *Storage) Save(jobID, suffix string, doc any) (string, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode results: %w", err)
	}
	path := filepath.Join(s.dir, fmt.Sprintf("%s_%s.json", jobID, suffix))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write results: %w", err)
	}
	return path, nil
}

// Load reads the result document for a job, trying each known suffix.
func (s *Storage) Load(jobID string) (map[string]any, error) {
	for _, suffix := range []string{suffixSegmentation, suffixTissueMask} {
		path := filepath.Join(s.dir, fmt.Sprintf("%s_%s.json", jobID, suffix))
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read results: %w", err)
		}
		var doc map[string]any
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode results: %w", err)
		}
		return doc, nil
	}
	return nil, shared.NewDomainError("NOT_FOUND", "results for job "+jobID+" not found", shared.ErrNotFound)
}

// LoadPath reads a result document from an explicit path.
func (s *Storage) LoadPath(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, shared.NewDomainError("NOT_FOUND", "result file not found", shared.ErrNotFound)
		}
		return nil, fmt.Errorf("read results: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	return doc, nil
}
