package redis

import (
	redis_models "PawArena/models/redis"
	redis_utils "PawArena/services/redis/utils"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient handles Redis operations: the volatile per-client queue state
// and the pub/sub channel that acts as the realtime change feed for battle
// sessions.
type RedisClient struct {
	Client *redis.Client
	Ctx    context.Context
}

// NewRedisClient creates a new Redis client instance
func NewRedisClient(Addr string, DB int) *RedisClient {
	var client *redis.Client
	if Addr != "localhost:6379" {
		log.Println("Connecting to remote Redis...")
		opt, err := redis.ParseURL(Addr)
		if err != nil {
			panic("Error parsing Redis URL")
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{
			Addr: Addr,
			DB:   DB,
		})
	}
	return &RedisClient{
		Client: client,
		Ctx:    context.Background(),
	}
}

// SaveQueueState stores a client's matchmaking state in Redis
// Key format: "battle:queue:{username}"
// TTL: 24 hours
func (rc *RedisClient) SaveQueueState(state *redis_models.BattleQueueState) error {
	key := redis_utils.FormatQueueStateKey(state.Username)
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("error marshaling queue state: %v", err)
	}
	return rc.Client.Set(rc.Ctx, key, data, 24*time.Hour).Err()
}

// GetQueueState retrieves a client's matchmaking state from Redis
// Key format: "battle:queue:{username}"
// Returns nil (no error) when the user has no cached state
func (rc *RedisClient) GetQueueState(username string) (*redis_models.BattleQueueState, error) {
	key := redis_utils.FormatQueueStateKey(username)
	data, err := rc.Client.Get(rc.Ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting queue state: %v", err)
	}

	var state redis_models.BattleQueueState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("error unmarshaling queue state: %v", err)
	}
	return &state, nil
}

// DeleteQueueState removes a client's matchmaking state from Redis
func (rc *RedisClient) DeleteQueueState(username string) error {
	key := redis_utils.FormatQueueStateKey(username)
	if err := rc.Client.Del(rc.Ctx, key).Err(); err != nil {
		return fmt.Errorf("error deleting queue state: %v", err)
	}
	return nil
}

// PublishSessionEvent publishes a change notification on a session's channel
// Channel format: "battle:session:{id}"
func (rc *RedisClient) PublishSessionEvent(event *redis_models.SessionEvent) error {
	channel := redis_utils.FormatSessionChannel(event.SessionID)
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("error marshaling session event: %v", err)
	}
	return rc.Client.Publish(rc.Ctx, channel, data).Err()
}

// SubscribeSession opens a subscription on a session's channel. The caller
// owns the returned PubSub and must Close it; events arrive on the returned
// Go channel and malformed payloads are logged and skipped.
func (rc *RedisClient) SubscribeSession(ctx context.Context, sessionId string) (*redis.PubSub, <-chan *redis_models.SessionEvent) {
	channel := redis_utils.FormatSessionChannel(sessionId)
	pubsub := rc.Client.Subscribe(ctx, channel)

	events := make(chan *redis_models.SessionEvent)
	go func() {
		defer close(events)
		for msg := range pubsub.Channel() {
			var event redis_models.SessionEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("Error unmarshaling session event on %s: %v", channel, err)
				continue
			}
			select {
			case events <- &event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return pubsub, events
}

// CleanupKeys removes the specified keys from Redis
func (rc *RedisClient) CleanupKeys(keys []string) error {
	for _, key := range keys {
		if err := rc.Client.Del(rc.Ctx, key).Err(); err != nil {
			return fmt.Errorf("failed to cleanup Redis key %s: %v", key, err)
		}
	}
	return nil
}
