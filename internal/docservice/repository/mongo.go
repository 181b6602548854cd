package repository

import (
	"context"
	"errors"
	"time"

	"github.com/gogotex/pdf-annotator/internal/docservice"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo implements a MongoDB-backed upload index keyed by filePath.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(ctx context.Context, col *mongo.Collection) (*MongoRepo, error) {
	idx := mongo.IndexModel{Keys: bson.D{{Key: "filePath", Value: 1}}, Options: options.Index().SetUnique(true)}
	if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, err
	}
	return &MongoRepo{col: col}, nil
}

func (m *MongoRepo) Create(ctx context.Context, u *docservice.Upload) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	_, err := m.col.InsertOne(ctx, u)
	return err
}

func (m *MongoRepo) Get(ctx context.Context, filePath string) (*docservice.Upload, error) {
	var u docservice.Upload
	err := m.col.FindOne(ctx, bson.M{"filePath": filePath}).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (m *MongoRepo) List(ctx context.Context) ([]*docservice.Upload, error) {
	cur, err := m.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*docservice.Upload{}
	for cur.Next(ctx) {
		var u docservice.Upload
		if err := cur.Decode(&u); err != nil {
			return nil, err
		}
		out = append(out, &u)
	}
	return out, cur.Err()
}

func (m *MongoRepo) Delete(ctx context.Context, filePath string) error {
	res, err := m.col.DeleteOne(ctx, bson.M{"filePath": filePath})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
