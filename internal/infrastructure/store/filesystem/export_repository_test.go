package filesystem

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"cardforge/internal/domain/entity"
)

func TestExportCards(t *testing.T) {
	repo, err := NewExportRepository(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	project := entity.NewProject("Dragons", "")
	cards := []*entity.Card{
		entity.NewCard(project.ID, "statblock", "Red Dragon", "an ancient red dragon", json.RawMessage(`{"cr":24}`)),
		entity.NewCard(project.ID, "artwork", "Red Dragon Art", "dragon over a volcano", nil),
	}

	if err := repo.ExportCards(context.Background(), project, cards); err != nil {
		t.Fatalf("ExportCards: %v", err)
	}

	for _, card := range cards {
		path := filepath.Join(repo.GetBasePath(), project.ID, card.ID+".json")
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read exported card: %v", err)
		}
		var got entity.Card
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal exported card: %v", err)
		}
		if got.Name != card.Name {
			t.Errorf("name = %q, want %q", got.Name, card.Name)
		}
	}

	metaPath := filepath.Join(repo.GetBasePath(), project.ID, "metadata.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	var meta struct {
		CardsCount int `json:"cards_count"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		t.Fatal(err)
	}
	if meta.CardsCount != 2 {
		t.Errorf("cards_count = %d, want 2", meta.CardsCount)
	}
}

func TestListAndDeleteExports(t *testing.T) {
	repo, err := NewExportRepository(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	project := entity.NewProject("Goblins", "")
	if err := repo.ExportCards(context.Background(), project, nil); err != nil {
		t.Fatal(err)
	}

	exports, err := repo.ListExports(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(exports) != 1 || exports[0] != project.ID {
		t.Errorf("exports = %v", exports)
	}

	if err := repo.DeleteExport(context.Background(), project.ID); err != nil {
		t.Fatal(err)
	}
	exports, err = repo.ListExports(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(exports) != 0 {
		t.Errorf("exports after delete = %v", exports)
	}
}

func TestNewExportRepositoryRejectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewExportRepository(path); err == nil {
		t.Error("expected error for non-directory path")
	}
}
