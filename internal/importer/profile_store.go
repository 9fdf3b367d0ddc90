package importer

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"parttrack/internal/logger"
	pkgerrors "parttrack/pkg/errors"
)

type ProfileRepository interface {
	GetProfile(ctx context.Context, id string) (*Profile, error)
}

type MongoProfileRepository struct {
	collection *mongo.Collection
}

func NewProfileRepository(db *mongo.Database) ProfileRepository {
	return &MongoProfileRepository{
		collection: db.Collection("import_profiles"),
	}
}

func (r *MongoProfileRepository) GetProfile(ctx context.Context, id string) (*Profile, error) {
	var profile Profile
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&profile)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find import profile: %w", err)
	}
	return &profile, nil
}

// ProfileStore caches profiles per ID so a batch does not hit Mongo per
// upload. Config events from the management service invalidate entries;
// the next upload reloads.
type ProfileStore struct {
	repo     ProfileRepository
	mu       sync.RWMutex
	profiles map[string]*Profile
	logger   logger.Logger
}

func NewProfileStore(repo ProfileRepository, log logger.Logger) *ProfileStore {
	return &ProfileStore{
		repo:     repo,
		profiles: make(map[string]*Profile),
		logger:   log,
	}
}

func (s *ProfileStore) GetProfile(ctx context.Context, id string) (*Profile, error) {
	s.mu.RLock()
	profile, ok := s.profiles[id]
	s.mu.RUnlock()
	if ok {
		return profile, nil
	}

	profile, err := s.repo.GetProfile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load import profile: %w", err)
	}
	if profile == nil {
		return nil, pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("import profile '%s' not found", id))
	}

	s.mu.Lock()
	s.profiles[id] = profile
	s.mu.Unlock()

	return profile, nil
}

// InvalidateProfile drops one cached profile, or the whole cache when the
// ID is empty.
func (s *ProfileStore) InvalidateProfile(profileID string) {
	s.mu.Lock()
	if profileID == "" {
		s.profiles = make(map[string]*Profile)
	} else {
		delete(s.profiles, profileID)
	}
	s.mu.Unlock()

	s.logger.Infow("Invalidated import profile cache", "profile_id", profileID)
}
