package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"transcoding_service/internal/transcode/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoVideoRepo struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoVideoRepo create mongo VideoRepo, 使用 videos collection
func NewMongoVideoRepo(db *mongo.Database) VideoRepo {
	return &mongoVideoRepo{
		coll: db.Collection("videos"),
		now:  time.Now,
	}
}

func (r *mongoVideoRepo) AutoMigrate(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}},
	})
	return err
}

func (r *mongoVideoRepo) InsertVideo(ctx context.Context, video *domain.Video) error {
	_, err := r.coll.InsertOne(ctx, video)
	return err
}

func (r *mongoVideoRepo) FindVideo(ctx context.Context, id string) (*domain.Video, error) {
	var v domain.Video
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&v)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("video[%s]: %w", id, domain.ErrVideoNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *mongoVideoRepo) UpdateVideoStatus(ctx context.Context, id string, status domain.VideoStatus, message string) error {
	from := domain.AllowedPredecessors(status)
	if len(from) == 0 {
		return fmt.Errorf("video[%s] -> %s: %w", id, status, domain.ErrInvalidTransition)
	}

	filter := bson.M{"_id": id, "status": bson.M{"$in": from}}
	update := bson.M{"$set": bson.M{
		"status":     status,
		"message":    message,
		"updated_at": r.now(),
	}}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}

	current, err := r.FindVideo(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("video[%s] %s -> %s: %w", id, current.Status, status, domain.ErrInvalidTransition)
}

func (r *mongoVideoRepo) FindByStatus(ctx context.Context, status domain.VideoStatus) ([]domain.Video, error) {
	if err := checkStatus(status); err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.M{"created_at": 1})
	cur, err := r.coll.Find(ctx, bson.M{"status": status}, opts)
	if err != nil {
		return nil, err
	}
	var videos []domain.Video
	if err := cur.All(ctx, &videos); err != nil {
		return nil, err
	}
	return videos, nil
}
