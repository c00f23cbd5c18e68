package mongodb

import (
	"context"
	"errors"
	"log"
	"time"

	"cardforge/internal/domain/entity"
	"cardforge/internal/domain/repository"
	"cardforge/internal/infrastructure/metrics"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type MongoProjectRepo struct {
	projectsCol *mongo.Collection
}

func NewMongoProjectRepo(db *mongo.Database) repository.ProjectRepository {
	col := db.Collection("projects")

	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys: bson.D{bson.E{Key: "owner_id", Value: 1}},
	})

	return &MongoProjectRepo{
		projectsCol: col,
	}
}

func (r *MongoProjectRepo) Create(ctx context.Context, project *entity.Project) error {
	metrics.IncDBOp("put")

	project.CreatedAt = time.Now()
	project.UpdatedAt = time.Now()
	_, err := r.projectsCol.InsertOne(ctx, project)
	if err != nil {
		metrics.IncError("mongo_project_repo", "create_error")
		return err
	}
	return nil
}

func (r *MongoProjectRepo) GetByID(ctx context.Context, id string) (*entity.Project, error) {
	metrics.IncDBOp("get")

	var project entity.Project
	err := r.projectsCol.FindOne(ctx, bson.M{"id": id}).Decode(&project)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		metrics.IncError("mongo_project_repo", "get_error")
		return nil, err
	}
	return &project, nil
}

func (r *MongoProjectRepo) List(ctx context.Context) ([]*entity.Project, error) {
	metrics.IncDBOp("list")

	cur, err := r.projectsCol.Find(ctx, bson.D{})
	if err != nil {
		metrics.IncError("mongo_project_repo", "list_error")
		return nil, err
	}
	defer func() {
		err := cur.Close(ctx)
		if err != nil {
			log.Printf("close cursor err: %s", err)
		}
	}()

	var projects []*entity.Project
	for cur.Next(ctx) {
		var p entity.Project
		if err := cur.Decode(&p); err != nil {
			metrics.IncError("mongo_project_repo", "list_decode_error")
			return nil, err
		}
		projects = append(projects, &p)
	}
	if err := cur.Err(); err != nil {
		metrics.IncError("mongo_project_repo", "list_cursor_error")
	}
	return projects, cur.Err()
}

func (r *MongoProjectRepo) Update(ctx context.Context, project *entity.Project) error {
	metrics.IncDBOp("put")

	project.UpdatedAt = time.Now()
	res, err := r.projectsCol.ReplaceOne(ctx, bson.M{"id": project.ID}, project)
	if err != nil {
		metrics.IncError("mongo_project_repo", "update_error")
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *MongoProjectRepo) Delete(ctx context.Context, id string) error {
	metrics.IncDBOp("delete")

	res, err := r.projectsCol.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		metrics.IncError("mongo_project_repo", "delete_error")
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
