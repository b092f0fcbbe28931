package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// Redis stores values as plain redis strings.
type Redis struct {
	client *goredis.Client
}

// RedisConfig configures the redis storage backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedis connects and pings the server before accepting writes.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[storage] connected to redis at %s", cfg.Addr)
	return &Redis{client: client}, nil
}

func (r *Redis) Load(ctx context.Context, name string) ([]byte, error) {
	value, err := r.client.Get(ctx, name).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", name, err)
	}
	return value, nil
}

func (r *Redis) Store(ctx context.Context, name string, value []byte) error {
	if err := r.client.Set(ctx, name, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", name, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
