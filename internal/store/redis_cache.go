package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mxocore/worldcore/internal/spatial"
	"github.com/mxocore/worldcore/internal/worldgraph"
	"github.com/go-redis/redis/v8"
)

// hotCache sits in front of relationalRepo for LoadCharacter reads. Grounded on
// RedisPositionRepository's key-prefix-plus-TTL style.
type hotCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// RedisConfig mirrors RedisPositionRepository's config shape.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

func newHotCache(cfg RedisConfig) (*hotCache, error) {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "mmo:char:"
	}
	if cfg.TTL == 0 {
		cfg.TTL = 5 * time.Minute
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("store: connect redis: %w", err)
	}
	return &hotCache{client: client, keyPrefix: cfg.KeyPrefix, ttl: cfg.TTL}, nil
}

func (c *hotCache) key(characterID uint32) string {
	return fmt.Sprintf("%s%d", c.keyPrefix, characterID)
}

func (c *hotCache) get(ctx context.Context, characterID uint32) (*Character, bool) {
	raw, err := c.client.Get(ctx, c.key(characterID)).Bytes()
	if err != nil {
		return nil, false
	}
	var ch Character
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, false
	}
	return &ch, true
}

func (c *hotCache) set(ctx context.Context, ch *Character) {
	raw, err := json.Marshal(ch)
	if err != nil {
		return
	}
	c.client.Set(ctx, c.key(ch.CharacterID), raw, c.ttl)
}

// invalidate drops a cached character so the next load re-reads MySQL,
// used after any save that touches the cached fields.
func (c *hotCache) invalidate(ctx context.Context, characterID uint32) {
	c.client.Del(ctx, c.key(characterID))
}

// applyPositionLocal patches an in-cache copy's position without a round
// trip to MySQL, so a busy player's frequent position saves stay cheap.
func (c *hotCache) applyPositionLocal(ctx context.Context, characterID uint32, pos spatial.Position, district worldgraph.District) {
	ch, ok := c.get(ctx, characterID)
	if !ok {
		return
	}
	ch.Position = pos
	ch.District = district
	c.set(ctx, ch)
}

func (c *hotCache) close() error {
	return c.client.Close()
}
