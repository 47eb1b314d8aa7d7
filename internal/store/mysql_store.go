package store

import (
	"context"
	"fmt"

	"github.com/mxocore/worldcore/internal/spatial"
	"github.com/mxocore/worldcore/internal/worldgraph"
)

// Config gathers the connection settings for every backing store C9 wires
// together: MySQL for relational rows, MongoDB for opaque blobs, Redis as
// a hot read cache, and a local badger directory for the write-ahead outbox.
type Config struct {
	MySQLDSN string
	Mongo    MongoConfig
	Redis    RedisConfig
	DataDir  string
}

// mysqlStore is the concrete Store: MySQL + MongoDB + Redis + badger,
// wired together per §4.9. Use New to construct one.
type mysqlStore struct {
	relational *relationalRepo
	blobs      *blobRepo
	cache      *hotCache
	box        *outbox
	worker     *worker
}

// New connects every backing store and starts the async write worker.
func New(cfg Config) (Store, error) {
	relational, err := newRelationalRepo(cfg.MySQLDSN)
	if err != nil {
		return nil, err
	}
	blobs, err := newBlobRepo(cfg.Mongo)
	if err != nil {
		relational.close()
		return nil, err
	}
	cache, err := newHotCache(cfg.Redis)
	if err != nil {
		relational.close()
		blobs.close()
		return nil, err
	}
	box, err := newOutbox(cfg.DataDir)
	if err != nil {
		relational.close()
		blobs.close()
		cache.close()
		return nil, err
	}

	w := newWorker(relational, blobs, cache, box)
	w.start()

	return &mysqlStore{relational: relational, blobs: blobs, cache: cache, box: box, worker: w}, nil
}

// LoadCharacter blocks: it consults the hot cache first, falling back to
// MySQL on a miss and repopulating the cache.
func (s *mysqlStore) LoadCharacter(ctx context.Context, characterID uint32) (*Character, error) {
	if ch, ok := s.cache.get(ctx, characterID); ok {
		return ch, nil
	}
	ch, err := s.relational.loadCharacter(ctx, characterID)
	if err != nil {
		return nil, err
	}
	s.cache.set(ctx, ch)
	return ch, nil
}

// SaveCharacter enqueues a partial update; it never blocks the caller on
// the backing stores (§4.9 "writes are asynchronous").
func (s *mysqlStore) SaveCharacter(characterID uint32, fields CharacterFields) {
	s.worker.enqueue(pendingWrite{Kind: writeCharacterFields, CharacterID: characterID, Fields: fields})
}

// LoadWorld blocks; worlds change rarely enough that no cache is warranted.
func (s *mysqlStore) LoadWorld(ctx context.Context, worldName string) (*World, error) {
	return s.relational.loadWorld(ctx, worldName)
}

// SaveAppearance enqueues the opaque appearance blob for MongoDB storage.
func (s *mysqlStore) SaveAppearance(characterID uint32, blob []byte) {
	s.worker.enqueue(pendingWrite{Kind: writeAppearance, CharacterID: characterID, Blob: blob})
}

// SavePosition enqueues a position/district update, the highest-frequency
// write in the system (every bound session, once per persistence snapshot).
func (s *mysqlStore) SavePosition(characterID uint32, pos spatial.Position, district worldgraph.District) {
	s.worker.enqueue(pendingWrite{Kind: writePosition, CharacterID: characterID, Position: pos, District: district})
}

// Close drains the write worker before closing every backing connection,
// so a graceful shutdown never loses a queued save.
func (s *mysqlStore) Close() error {
	s.worker.close()

	var firstErr error
	for _, closer := range []func() error{s.box.close, s.cache.close, s.blobs.close, s.relational.close} {
		if err := closer(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("store: close: %w", err)
		}
	}
	return firstErr
}
