// Package redisstore keeps chat sessions in Redis lists so several API
// instances can serve the same session.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"kbchat-be/internal/entity"
	"kbchat-be/internal/repository/contract"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "kbchat:session:"

var _ contract.SessionRepository = (*SessionRepository)(nil)

type SessionRepository struct {
	rdb      *redis.Client
	ttl      time.Duration
	maxTurns int
}

func NewSessionRepository(rdb *redis.Client, ttl time.Duration, maxTurns int) *SessionRepository {
	return &SessionRepository{rdb: rdb, ttl: ttl, maxTurns: maxTurns}
}

func (r *SessionRepository) Append(ctx context.Context, sessionID string, turns ...entity.ChatTurn) error {
	if len(turns) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(turns))
	for _, turn := range turns {
		raw, err := json.Marshal(turn)
		if err != nil {
			return fmt.Errorf("marshal turn: %w", err)
		}
		values = append(values, raw)
	}

	key := keyPrefix + sessionID
	// MULTI/EXEC keeps push, trim and expiry atomic per session
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		if r.maxTurns > 0 {
			pipe.LTrim(ctx, key, int64(-r.maxTurns), -1)
		}
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("append session %s: %w", sessionID, err)
	}
	return nil
}

func (r *SessionRepository) GetHistory(ctx context.Context, sessionID string) ([]entity.ChatTurn, error) {
	raws, err := r.rdb.LRange(ctx, keyPrefix+sessionID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	turns := make([]entity.ChatTurn, 0, len(raws))
	for _, raw := range raws {
		var turn entity.ChatTurn
		if err := json.Unmarshal([]byte(raw), &turn); err != nil {
			return nil, fmt.Errorf("decode turn of session %s: %w", sessionID, err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (r *SessionRepository) Clear(ctx context.Context, sessionID string) error {
	if err := r.rdb.Del(ctx, keyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("clear session %s: %w", sessionID, err)
	}
	return nil
}

// NewClient parses a redis:// URL, falling back to treating it as host:port.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}
