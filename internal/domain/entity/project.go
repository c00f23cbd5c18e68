package entity

import (
	"time"

	"github.com/google/uuid"
)

// Project — пользовательский проект с набором сгенерированных карт.
type Project struct {
	ID        string    `json:"id" bson:"id"`
	Name      string    `json:"name" bson:"name"`
	OwnerID   string    `json:"owner_id,omitempty" bson:"owner_id,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

func NewProject(name, ownerID string) *Project {
	now := time.Now()
	return &Project{
		ID:        uuid.New().String(),
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (p *Project) Touch() {
	p.UpdatedAt = time.Now()
}
