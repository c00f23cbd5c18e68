package repository

import (
	"context"

	"cardforge/internal/domain/entity"
)

// CardRepository интерфейс для хранения сгенерированных карт.
type CardRepository interface {
	Save(ctx context.Context, card *entity.Card) error
	GetByID(ctx context.Context, id string) (*entity.Card, error)
	ListByProject(ctx context.Context, projectID string) ([]*entity.Card, error)
	Delete(ctx context.Context, id string) error
	DeleteByProject(ctx context.Context, projectID string) error
}
