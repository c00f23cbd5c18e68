package repository

import (
	"context"

	"cardforge/internal/domain/entity"
)

// ProjectRepository определяет интерфейс доступа к хранилищу проектов.
type ProjectRepository interface {
	Create(ctx context.Context, project *entity.Project) error
	GetByID(ctx context.Context, id string) (*entity.Project, error)
	List(ctx context.Context) ([]*entity.Project, error)
	Update(ctx context.Context, project *entity.Project) error
	Delete(ctx context.Context, id string) error
}
