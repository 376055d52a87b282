package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stillpoint-yoga/studio/internal/models"
)

const (
	keyPrefix = "studio:occupancy"

	// generation counters outlive every cached entry by a wide margin
	generationTTL = 7 * 24 * time.Hour
)

// OccupancyCache keeps occurrence seat summaries in Redis.
//
// Every entry is stamped with the occurrence and class generations read before the
// summary was computed. Invalidate bumps a generation, so a summary computed from
// counts that predate a booking mutation is never served, even if it is written
// after the invalidation.
type OccupancyCache struct {
	client *redis.Client
	ttl    time.Duration
}

type entry struct {
	Version   string            `json:"version"`
	Occupancy *models.Occupancy `json:"occupancy"`
}

// NewRedisClient connects to redis with short timeouts.
func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
}

func NewOccupancyCache(client *redis.Client, ttl time.Duration) *OccupancyCache {
	return &OccupancyCache{client: client, ttl: ttl}
}

func Key(classID uint, date string) string {
	return fmt.Sprintf("%s:%d:%s", keyPrefix, classID, date)
}

func occurrenceGenKey(classID uint, date string) string {
	return Key(classID, date) + ":gen"
}

func classGenKey(classID uint) string {
	return fmt.Sprintf("%s:%d:gen", keyPrefix, classID)
}

// Get returns the cached summary when it is current. On a miss it returns the
// version a fresh summary must be stored with; an empty version means redis is
// unavailable and the summary should not be stored.
func (c *OccupancyCache) Get(ctx context.Context, classID uint, date string) (*models.Occupancy, string, bool) {
	key := Key(classID, date)
	vals, err := c.client.MGet(ctx, key, occurrenceGenKey(classID, date), classGenKey(classID)).Result()
	if err != nil {
		log.Printf("[OccupancyCache] get %s: %v", key, err)
		return nil, "", false
	}

	version := versionOf(vals[1], vals[2])
	occ, ok := decodeEntry(vals[0], version)
	if !ok {
		return nil, version, false
	}
	return occ, version, true
}

// Set stores occ under the version returned by Get.
func (c *OccupancyCache) Set(ctx context.Context, occ *models.Occupancy, version string) {
	if version == "" {
		return
	}
	raw, err := json.Marshal(entry{Version: version, Occupancy: occ})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, Key(occ.ClassID, occ.Date), raw, c.ttl).Err(); err != nil {
		log.Printf("[OccupancyCache] set %s: %v", Key(occ.ClassID, occ.Date), err)
	}
}

// Invalidate drops the summary of one occurrence.
func (c *OccupancyCache) Invalidate(ctx context.Context, classID uint, date string) {
	genKey := occurrenceGenKey(classID, date)
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, genKey)
		p.Expire(ctx, genKey, generationTTL)
		p.Del(ctx, Key(classID, date))
		return nil
	})
	if err != nil {
		log.Printf("[OccupancyCache] invalidate %s: %v", Key(classID, date), err)
	}
}

// InvalidateClass drops the summaries of every occurrence of a class.
func (c *OccupancyCache) InvalidateClass(ctx context.Context, classID uint) {
	genKey := classGenKey(classID)
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, genKey)
		p.Expire(ctx, genKey, generationTTL)
		return nil
	})
	if err != nil {
		log.Printf("[OccupancyCache] invalidate class %d: %v", classID, err)
	}
}

// Healthy verifies redis connectivity.
func (c *OccupancyCache) Healthy(ctx context.Context) bool {
	if c == nil || c.client == nil {
		return false
	}
	return c.client.Ping(ctx).Err() == nil
}

// versionOf joins the occurrence and class generations; missing counters are 0.
func versionOf(occurrenceGen, classGen any) string {
	gen := func(v any) string {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
		return "0"
	}
	return gen(occurrenceGen) + "." + gen(classGen)
}

func decodeEntry(raw any, version string) (*models.Occupancy, bool) {
	s, ok := raw.(string)
	if !ok {
		return nil, false
	}
	var e entry
	if err := json.Unmarshal([]byte(s), &e); err != nil {
		log.Printf("[OccupancyCache] corrupt entry: %v", err)
		return nil, false
	}
	if e.Version != version || e.Occupancy == nil {
		return nil, false
	}
	return e.Occupancy, true
}
