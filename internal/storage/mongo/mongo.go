// Package mongo stores profiles and reaction roles in MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hearth-bot/internal/storage"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

type Options struct {
	URI                    string
	Database               string
	ProfileCollection      string
	ReactionRoleCollection string
}

type Store struct {
	client   *mongo.Client
	profiles *mongo.Collection
	roles    *mongo.Collection
	logger   *zap.Logger
}

func New(ctx context.Context, opts Options, logger *zap.Logger) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return newStore(client, client.Database(opts.Database), opts, logger), nil
}

func newStore(client *mongo.Client, db *mongo.Database, opts Options, logger *zap.Logger) *Store {
	return &Store{
		client:   client,
		profiles: db.Collection(opts.ProfileCollection),
		roles:    db.Collection(opts.ReactionRoleCollection),
		logger:   logger,
	}
}

// EnsureIndexes creates the indexes the queries below rely on. Safe to run on every start.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.roles.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "message_id", Value: 1}, {Key: "emoji", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("message_emoji"),
	})
	if err != nil {
		return fmt.Errorf("reaction role index: %w", err)
	}
	_, err = s.profiles.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "level", Value: -1}, {Key: "xp", Value: -1}},
		Options: options.Index().SetName("leaderboard"),
	})
	if err != nil {
		return fmt.Errorf("profile index: %w", err)
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (storage.Profile, error) {
	var profile storage.Profile
	err := s.profiles.FindOne(ctx, bson.M{"_id": userID}).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return storage.Profile{}, storage.ErrNotFound
		}
		return storage.Profile{}, err
	}
	return profile, nil
}

func (s *Store) CreateProfile(ctx context.Context, profile storage.Profile) error {
	if _, err := s.profiles.InsertOne(ctx, profile); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storage.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *Store) SaveProfile(ctx context.Context, profile storage.Profile) error {
	_, err := s.profiles.ReplaceOne(ctx, bson.M{"_id": profile.UserID}, profile, options.Replace().SetUpsert(true))
	return err
}

func (s *Store) AddInfraction(ctx context.Context, userID, note string) (int, error) {
	update := bson.M{
		"$inc": bson.M{"infraction_count": 1},
		"$push": bson.M{"infractions": bson.M{
			"$each":  bson.A{note},
			"$slice": -storage.MaxInfractionNotes,
		}},
		"$set": bson.M{"updated_at": time.Now()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var profile storage.Profile
	err := s.profiles.FindOneAndUpdate(ctx, bson.M{"_id": userID}, update, opts).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, storage.ErrNotFound
		}
		return 0, err
	}
	return profile.InfractionCount, nil
}

func (s *Store) TopProfiles(ctx context.Context, limit int) ([]storage.Profile, error) {
	opts := options.Find().SetSort(bson.D{{Key: "level", Value: -1}, {Key: "xp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.profiles.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	var profiles []storage.Profile
	if err := cursor.All(ctx, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (s *Store) ListReactionRoles(ctx context.Context) ([]storage.ReactionRole, error) {
	cursor, err := s.roles.Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var roles []storage.ReactionRole
	for cursor.Next(ctx) {
		var role storage.ReactionRole
		if err := cursor.Decode(&role); err != nil {
			s.logger.Error("malformed reaction role document", zap.String("raw", cursor.Current.String()), zap.Error(err))
			return nil, fmt.Errorf("decode reaction role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, cursor.Err()
}

func (s *Store) AddReactionRole(ctx context.Context, mapping storage.ReactionRole) error {
	filter := bson.M{"message_id": mapping.MessageID, "emoji": mapping.Emoji}
	_, err := s.roles.ReplaceOne(ctx, filter, mapping, options.Replace().SetUpsert(true))
	return err
}

func (s *Store) RemoveReactionRole(ctx context.Context, messageID, emoji string) error {
	res, err := s.roles.DeleteOne(ctx, bson.M{"message_id": messageID, "emoji": emoji})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
