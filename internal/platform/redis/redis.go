// Package redis opens the connection every durable piece of bot state lives
// behind: user records, topic bindings, relay mappings, pending admin
// commands and the broadcast stream.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Client wraps the go-redis client so call sites depend on one local type.
type Client struct {
	*redis.Client
}

// Open connects and pings. The bot refuses to start without Redis: there is
// no fallback store for the topic bindings.
func Open(ctx context.Context, addr, password string, db int) (*Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis: empty addr")
	}
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return &Client{Client: c}, nil
}
