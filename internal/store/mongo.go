package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// blobRepo owns the character_appearance and character_inventory document
// collections. Grounded on MongoUserRepo's connect-and-index pattern.
type blobRepo struct {
	client      *mongo.Client
	appearance  *mongo.Collection
	inventory   *mongo.Collection
	ctxTimeout  time.Duration
}

// MongoConfig mirrors the connection shape used by the auth package's
// MongoUserRepo, scoped to this repo's two collections.
type MongoConfig struct {
	URI      string
	Database string
}

func newBlobRepo(cfg MongoConfig) (*blobRepo, error) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "mmo_world"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("store: connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("store: ping mongo: %w", err)
	}

	db := client.Database(cfg.Database)
	repo := &blobRepo{
		client:     client,
		appearance: db.Collection("character_appearance"),
		inventory:  db.Collection("character_inventory"),
		ctxTimeout: 5 * time.Second,
	}
	if err := repo.ensureIndexes(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (b *blobRepo) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), b.ctxTimeout)
	defer cancel()
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "character_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("character_id_unique"),
	}
	if _, err := b.appearance.Indexes().CreateOne(ctx, idx); err != nil {
		return fmt.Errorf("store: appearance index: %w", err)
	}
	if _, err := b.inventory.Indexes().CreateOne(ctx, idx); err != nil {
		return fmt.Errorf("store: inventory index: %w", err)
	}
	return nil
}

func (b *blobRepo) saveAppearance(characterID uint32, blob []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), b.ctxTimeout)
	defer cancel()
	_, err := b.appearance.UpdateOne(ctx,
		bson.M{"character_id": characterID},
		bson.M{"$set": bson.M{"character_id": characterID, "blob": blob, "updated_at": time.Now()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("store: save appearance %d: %w", characterID, err)
	}
	return nil
}

func (b *blobRepo) loadAppearance(ctx context.Context, characterID uint32) ([]byte, error) {
	var doc struct {
		Blob []byte `bson:"blob"`
	}
	err := b.appearance.FindOne(ctx, bson.M{"character_id": characterID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load appearance %d: %w", characterID, err)
	}
	return doc.Blob, nil
}

func (b *blobRepo) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return b.client.Disconnect(ctx)
}
