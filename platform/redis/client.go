// Package redis builds go-redis clients from application config.
package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"portal_lead_distribution/platform/config"

	"github.com/redis/go-redis/v9"
)

// Options parses the configured URL. tlsInsecure skips certificate
// verification, for managed redis behind self-signed certs.
func Options(cfg config.RedisConfig) (*redis.Options, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, errors.New("redis url not configured")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	if opts.TLSConfig != nil {
		clone := opts.TLSConfig.Clone()
		if cfg.GetRedisTLSInsecure() {
			clone.InsecureSkipVerify = true
		}
		opts.TLSConfig = clone
	} else if cfg.GetRedisTLSInsecure() {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return opts, nil
}

// New connects and verifies the connection with a ping.
func New(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := Options(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
