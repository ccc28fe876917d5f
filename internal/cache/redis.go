package cache

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/xannhsux/dsci560-hikebot/internal/models"
)

const (
	searchTTL  = 24 * time.Hour
	weatherTTL = time.Hour
)

// Redis wraps the Redis client used for the message search index, the
// weather snapshot cache and the rate-limit counters.
type Redis struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, redisURL string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Redis{client: client}, nil
}

// Client exposes the underlying client for the rate-limit middleware.
func (r *Redis) Client() *redis.Client {
	return r.client
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Ping checks the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// searchWordKey returns the key for a search word index.
func searchWordKey(word string) string {
	return fmt.Sprintf("search:words:%s", strings.ToLower(word))
}

// weatherKey returns the cache key for a forecast lookup, rounded to ~1km so
// nearby trailheads share an entry.
func weatherKey(lat, lon float64, day string) string {
	return fmt.Sprintf("weather:%.2f:%.2f:%s", lat, lon, day)
}

// wordRegex matches word characters for search indexing.
var wordRegex = regexp.MustCompile(`\w+`)

// MessageRef points from the search index back into the durable log.
type MessageRef struct {
	RoomID uuid.UUID
	ID     int64
}

// IndexMessage indexes a message's content words for search. Indexing is
// best-effort; callers ignore the error beyond logging.
func (r *Redis) IndexMessage(ctx context.Context, msg *models.Message) error {
	words := wordRegex.FindAllString(strings.ToLower(msg.Content), -1)

	ref := fmt.Sprintf("%s:%d", msg.RoomID, msg.ID)
	score := float64(msg.CreatedAt.UnixMilli())

	seen := make(map[string]bool)
	for _, word := range words {
		if len(word) < 3 || seen[word] {
			continue
		}
		seen[word] = true

		key := searchWordKey(word)
		if err := r.client.ZAdd(ctx, key, redis.Z{Score: score, Member: ref}).Err(); err != nil {
			return err
		}
		r.client.Expire(ctx, key, searchTTL)
	}

	return nil
}

// SearchRefs returns refs to messages containing all tokens, newest first.
func (r *Redis) SearchRefs(ctx context.Context, tokens []string, limit int, roomFilter uuid.UUID) ([]MessageRef, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	keys := make([]string, len(tokens))
	for i, t := range tokens {
		keys[i] = searchWordKey(t)
	}

	var raw []string
	var err error

	if len(keys) == 1 {
		raw, err = r.client.ZRevRangeByScore(ctx, keys[0], &redis.ZRangeBy{
			Min:   "-inf",
			Max:   "+inf",
			Count: int64(limit * 3), // fetch extra for room filtering
		}).Result()
	} else {
		tempKey := fmt.Sprintf("search:temp:%d", time.Now().UnixNano())
		r.client.ZInterStore(ctx, tempKey, &redis.ZStore{
			Keys:      keys,
			Aggregate: "MIN",
		})
		r.client.Expire(ctx, tempKey, 10*time.Second)

		raw, err = r.client.ZRevRangeByScore(ctx, tempKey, &redis.ZRangeBy{
			Min:   "-inf",
			Max:   "+inf",
			Count: int64(limit * 3),
		}).Result()
		r.client.Del(ctx, tempKey)
	}
	if err != nil {
		return nil, err
	}

	refs := make([]MessageRef, 0, limit)
	for _, entry := range raw {
		idx := strings.LastIndex(entry, ":")
		if idx < 0 {
			continue
		}
		roomID, err := uuid.Parse(entry[:idx])
		if err != nil {
			continue
		}
		id, err := strconv.ParseInt(entry[idx+1:], 10, 64)
		if err != nil {
			continue
		}
		if roomFilter != uuid.Nil && roomID != roomFilter {
			continue
		}
		refs = append(refs, MessageRef{RoomID: roomID, ID: id})
		if len(refs) >= limit {
			break
		}
	}

	return refs, nil
}

// GetWeather returns a cached forecast blob, or "" on miss.
func (r *Redis) GetWeather(ctx context.Context, lat, lon float64, day string) string {
	val, err := r.client.Get(ctx, weatherKey(lat, lon, day)).Result()
	if err != nil {
		return ""
	}
	return val
}

// SetWeather caches a forecast blob for an hour, matching the upstream
// refresh interval.
func (r *Redis) SetWeather(ctx context.Context, lat, lon float64, day, blob string) {
	r.client.Set(ctx, weatherKey(lat, lon, day), blob, weatherTTL)
}
