package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Card is one generated game-item card: the textual statblock, the artwork
// reference, or both, depending on which kinds produced it.
type Card struct {
	ID        string          `json:"id" bson:"id"`
	ProjectID string          `json:"project_id" bson:"project_id"`
	Kind      string          `json:"kind" bson:"kind"` // statblock, artwork;
	Name      string          `json:"name" bson:"name"`
	Prompt    string          `json:"prompt" bson:"prompt"`
	Payload   json.RawMessage `json:"payload" bson:"payload"`
	ImageURL  string          `json:"image_url,omitempty" bson:"image_url,omitempty"`
	CreatedAt time.Time       `json:"created_at" bson:"created_at"`
}

func NewCard(projectID, kind, name, prompt string, payload json.RawMessage) *Card {
	return &Card{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Kind:      kind,
		Name:      name,
		Prompt:    prompt,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}
