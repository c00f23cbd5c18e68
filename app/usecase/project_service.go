package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"cardforge/internal/domain/entity"
	"cardforge/internal/domain/repository"
	"cardforge/internal/infrastructure/store/filesystem"
)

type ProjectUsecase interface {
	CreateProject(ctx context.Context, name, ownerID string) (*entity.Project, error)
	GetProject(ctx context.Context, id string) (*entity.Project, error)
	ListProjects(ctx context.Context) ([]*entity.Project, error)
	DeleteProject(ctx context.Context, id string) error
	AddCard(ctx context.Context, projectID, kind, name, prompt string, payload json.RawMessage) (*entity.Card, error)
	ListCards(ctx context.Context, projectID string) ([]*entity.Card, error)
	DeleteCard(ctx context.Context, cardID string) error
	ExportProject(ctx context.Context, projectID string) error
	ListExports(ctx context.Context) ([]string, error)
	DeleteExport(ctx context.Context, projectID string) error
}

var _ ProjectUsecase = (*ProjectService)(nil)

type ProjectService struct {
	projectRepo repository.ProjectRepository
	cardRepo    repository.CardRepository
	exportRepo  filesystem.ExportRepository
}

func NewProjectService(
	pr repository.ProjectRepository,
	cr repository.CardRepository,
	er filesystem.ExportRepository,
) *ProjectService {
	return &ProjectService{
		projectRepo: pr,
		cardRepo:    cr,
		exportRepo:  er,
	}
}

func (u *ProjectService) CreateProject(ctx context.Context, name, ownerID string) (*entity.Project, error) {
	if name == "" {
		return nil, fmt.Errorf("project name is required")
	}
	project := entity.NewProject(name, ownerID)
	if err := u.projectRepo.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return project, nil
}

func (u *ProjectService) GetProject(ctx context.Context, id string) (*entity.Project, error) {
	project, err := u.projectRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, notFoundError(id)
	}
	return project, nil
}

func (u *ProjectService) ListProjects(ctx context.Context) ([]*entity.Project, error) {
	return u.projectRepo.List(ctx)
}

func (u *ProjectService) DeleteProject(ctx context.Context, id string) error {
	if err := u.cardRepo.DeleteByProject(ctx, id); err != nil {
		return fmt.Errorf("delete project cards: %w", err)
	}
	if err := u.projectRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

func (u *ProjectService) AddCard(ctx context.Context, projectID, kind, name, prompt string, payload json.RawMessage) (*entity.Card, error) {
	project, err := u.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	if project == nil {
		return nil, notFoundError(projectID)
	}

	card := entity.NewCard(projectID, kind, name, prompt, payload)
	if err := u.cardRepo.Save(ctx, card); err != nil {
		return nil, fmt.Errorf("save card: %w", err)
	}

	project.Touch()
	if err := u.projectRepo.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("touch project: %w", err)
	}
	return card, nil
}

func (u *ProjectService) ListCards(ctx context.Context, projectID string) ([]*entity.Card, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}
	cards, err := u.cardRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list cards for project %s: %w", projectID, err)
	}
	return cards, nil
}

func (u *ProjectService) DeleteCard(ctx context.Context, cardID string) error {
	if cardID == "" {
		return fmt.Errorf("cardID is required")
	}
	if err := u.cardRepo.Delete(ctx, cardID); err != nil {
		return fmt.Errorf("delete card %s: %w", cardID, err)
	}
	return nil
}

// ExportProject writes the project's cards to the export directory on disk.
func (u *ProjectService) ExportProject(ctx context.Context, projectID string) error {
	project, err := u.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return fmt.Errorf("get project: %w", err)
	}
	if project == nil {
		return notFoundError(projectID)
	}
	cards, err := u.cardRepo.ListByProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("list cards: %w", err)
	}
	if err := u.exportRepo.ExportCards(ctx, project, cards); err != nil {
		return fmt.Errorf("export cards: %w", err)
	}
	return nil
}

// ListExports returns the project IDs that have finished exports on disk.
func (u *ProjectService) ListExports(ctx context.Context) ([]string, error) {
	exports, err := u.exportRepo.ListExports(ctx)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	return exports, nil
}

func (u *ProjectService) DeleteExport(ctx context.Context, projectID string) error {
	if projectID == "" {
		return fmt.Errorf("projectID is required")
	}
	if err := u.exportRepo.DeleteExport(ctx, projectID); err != nil {
		return fmt.Errorf("delete export %s: %w", projectID, err)
	}
	return nil
}

func notFoundError(id string) error {
	return fmt.Errorf("project %s not found", id)
}
