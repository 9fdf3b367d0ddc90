package management

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ProfileRepository interface {
	CreateImportProfile(ctx context.Context, profile *ImportProfile) error
	ListImportProfiles(ctx context.Context) ([]ImportProfile, error)
	GetImportProfile(ctx context.Context, id string) (*ImportProfile, error)
	UpdateImportProfile(ctx context.Context, profile *ImportProfile) error
	DeleteImportProfile(ctx context.Context, id string) error
}

type mongoProfileRepository struct {
	collection *mongo.Collection
}

func NewProfileRepository(db *mongo.Database) ProfileRepository {
	return &mongoProfileRepository{
		collection: db.Collection("import_profiles"),
	}
}

func (r *mongoProfileRepository) CreateImportProfile(ctx context.Context, profile *ImportProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}
	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, profile)
	if err != nil {
		return fmt.Errorf("failed to create import profile: %w", err)
	}

	return nil
}

func (r *mongoProfileRepository) GetImportProfile(ctx context.Context, id string) (*ImportProfile, error) {
	filter := bson.M{"_id": id}

	var profile ImportProfile
	err := r.collection.FindOne(ctx, filter).Decode(&profile)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import profile: %w", err)
	}

	return &profile, nil
}

func (r *mongoProfileRepository) ListImportProfiles(ctx context.Context) ([]ImportProfile, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list import profiles: %w", err)
	}
	defer cursor.Close(ctx)

	var profiles []ImportProfile
	if err := cursor.All(ctx, &profiles); err != nil {
		return nil, fmt.Errorf("failed to decode import profiles: %w", err)
	}

	return profiles, nil
}

func (r *mongoProfileRepository) UpdateImportProfile(ctx context.Context, profile *ImportProfile) error {
	profile.UpdatedAt = time.Now()

	filter := bson.M{"_id": profile.ID}
	update := bson.M{"$set": profile}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update import profile: %w", err)
	}

	if result.MatchedCount == 0 {
		return fmt.Errorf("import profile not found")
	}

	return nil
}

func (r *mongoProfileRepository) DeleteImportProfile(ctx context.Context, id string) error {
	filter := bson.M{"_id": id}

	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete import profile: %w", err)
	}

	if result.DeletedCount == 0 {
		return fmt.Errorf("import profile not found")
	}

	return nil
}
