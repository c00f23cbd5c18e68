package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"cardforge/internal/domain/entity"
)

// ExportRepository writes generated cards to disk as JSON, one directory per
// project, so finished card sets can be picked up by external tooling.
type ExportRepository struct {
	basePath string
}

func (r *ExportRepository) GetBasePath() string {
	return r.basePath
}

func NewExportRepository(basePath string) (ExportRepository, error) {
	info, err := os.Stat(basePath)
	if os.IsNotExist(err) {
		if mkErr := os.MkdirAll(basePath, 0755); mkErr != nil {
			return ExportRepository{}, fmt.Errorf("failed to create directory %s: %w", basePath, mkErr)
		}
	} else if err != nil {
		return ExportRepository{}, fmt.Errorf("failed to check directory %s: %w", basePath, err)
	} else if !info.IsDir() {
		return ExportRepository{}, fmt.Errorf("path %s exists but is not a directory", basePath)
	}

	return ExportRepository{
		basePath: basePath,
	}, nil
}

func (r *ExportRepository) ExportCards(ctx context.Context, project *entity.Project, cards []*entity.Card) error {
	projectDir := filepath.Join(r.basePath, project.ID)
	if err := os.MkdirAll(projectDir, 0755); err != nil {
		return fmt.Errorf("failed to create project directory: %w", err)
	}

	for _, card := range cards {
		cardPath := filepath.Join(projectDir, card.ID+".json")
		data, err := json.MarshalIndent(card, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal card %s: %w", card.ID, err)
		}
		if err := os.WriteFile(cardPath, data, 0644); err != nil {
			return fmt.Errorf("failed to write card %s: %w", card.ID, err)
		}
	}

	metadata := map[string]interface{}{
		"project_id":  project.ID,
		"name":        project.Name,
		"exported_at": time.Now(),
		"cards_count": len(cards),
	}

	metadataPath := filepath.Join(projectDir, "metadata.json")
	metadataData, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.WriteFile(metadataPath, metadataData, 0644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	return nil
}

func (r *ExportRepository) ListExports(ctx context.Context) ([]string, error) {
	var exports []string

	err := filepath.WalkDir(r.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() && path != r.basePath {
			metadataPath := filepath.Join(path, "metadata.json")
			if _, err := os.Stat(metadataPath); err == nil {
				exports = append(exports, filepath.Base(path))
			}
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	return exports, nil
}

func (r *ExportRepository) DeleteExport(ctx context.Context, projectID string) error {
	projectDir := filepath.Join(r.basePath, projectID)

	if err := os.RemoveAll(projectDir); err != nil {
		return fmt.Errorf("failed to delete project directory: %w", err)
	}

	return nil
}
