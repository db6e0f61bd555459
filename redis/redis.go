package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"supportdesk/models"
)

type RedisClient struct {
	Client *redis.Client
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// NewRedisClient connects and PINGs so a misconfigured address fails at
// startup instead of on the first presence write.
func NewRedisClient(cfg *RedisConfig) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("redis client connection test failed: %w", err)
	}

	return &RedisClient{Client: client}, nil
}

func (r *RedisClient) Close() error {
	return r.Client.Close()
}

// AttendantPresence is the cached console presence shown in the workspace
// header. The attendant row in the database stays authoritative; this hash
// only exists so presence lookups stay off the primary store.
type AttendantPresence struct {
	AttendantID uint                   `json:"attendant_id"`
	DisplayName string                 `json:"display_name"`
	Status      models.AttendantStatus `json:"status"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

func presenceKey(tenantID uint) string {
	return fmt.Sprintf("chat:tenant:%d:attendants", tenantID)
}

func (r *RedisClient) SetAttendantPresence(ctx context.Context, tenantID uint, p AttendantPresence) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	key := presenceKey(tenantID)
	field := fmt.Sprintf("%d", p.AttendantID)
	if err := r.Client.HSet(ctx, key, field, data).Err(); err != nil {
		return err
	}
	return r.Client.Expire(ctx, key, 24*time.Hour).Err()
}

func (r *RedisClient) RemoveAttendantPresence(ctx context.Context, tenantID, attendantID uint) error {
	return r.Client.HDel(ctx, presenceKey(tenantID), fmt.Sprintf("%d", attendantID)).Err()
}

func (r *RedisClient) GetAttendantPresence(ctx context.Context, tenantID uint) ([]AttendantPresence, error) {
	result, err := r.Client.HGetAll(ctx, presenceKey(tenantID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch presence for tenant %d: %w", tenantID, err)
	}
	presences := make([]AttendantPresence, 0, len(result))
	for _, data := range result {
		var p AttendantPresence
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			continue
		}
		presences = append(presences, p)
	}
	return presences, nil
}
