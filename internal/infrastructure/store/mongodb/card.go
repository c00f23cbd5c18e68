package mongodb

import (
	"context"
	"errors"
	"log"

	"cardforge/internal/domain/entity"
	"cardforge/internal/domain/repository"
	"cardforge/internal/infrastructure/metrics"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type MongoCardRepo struct {
	col *mongo.Collection
}

func NewMongoCardRepo(db *mongo.Database) repository.CardRepository {
	col := db.Collection("cards")

	_, _ = col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{bson.E{Key: "project_id", Value: 1}}},
	})

	return &MongoCardRepo{
		col: col,
	}
}

func (r *MongoCardRepo) Save(ctx context.Context, card *entity.Card) error {
	metrics.IncDBOp("put")

	_, err := r.col.InsertOne(ctx, card)
	if err != nil {
		metrics.IncError("mongo_card_repo", "save_error")
		return err
	}
	return nil
}

func (r *MongoCardRepo) GetByID(ctx context.Context, id string) (*entity.Card, error) {
	metrics.IncDBOp("get")

	var card entity.Card
	err := r.col.FindOne(ctx, bson.M{"id": id}).Decode(&card)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		metrics.IncError("mongo_card_repo", "get_error")
		return nil, err
	}
	return &card, nil
}

func (r *MongoCardRepo) ListByProject(ctx context.Context, projectID string) ([]*entity.Card, error) {
	metrics.IncDBOp("list")

	cur, err := r.col.Find(ctx, bson.M{"project_id": projectID})
	if err != nil {
		metrics.IncError("mongo_card_repo", "list_error")
		return nil, err
	}
	defer func() {
		err := cur.Close(ctx)
		if err != nil {
			log.Printf("close cursor err: %s", err)
		}
	}()

	var cards []*entity.Card
	for cur.Next(ctx) {
		var c entity.Card
		if err := cur.Decode(&c); err != nil {
			metrics.IncError("mongo_card_repo", "list_decode_error")
			return nil, err
		}
		cards = append(cards, &c)
	}
	if err := cur.Err(); err != nil {
		metrics.IncError("mongo_card_repo", "list_cursor_error")
	}
	return cards, cur.Err()
}

func (r *MongoCardRepo) Delete(ctx context.Context, id string) error {
	metrics.IncDBOp("delete")

	res, err := r.col.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		metrics.IncError("mongo_card_repo", "delete_error")
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *MongoCardRepo) DeleteByProject(ctx context.Context, projectID string) error {
	metrics.IncDBOp("delete")

	_, err := r.col.DeleteMany(ctx, bson.M{"project_id": projectID})
	if err != nil {
		metrics.IncError("mongo_card_repo", "delete_by_project_error")
		return err
	}
	return nil
}
