package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/acanas/selftest-service/internal/repositories"
	"github.com/acanas/selftest-service/internal/utils"
	"github.com/redis/go-redis/v9"
)

// LastPrint is the throttle state: when the user's previous print in the
// course started and how many questions it had.
type LastPrint struct {
	StartTime    time.Time `json:"start_time"`
	NumQuestions int       `json:"num_questions"`
}

// ThrottleStore tracks each user's last print per course. GetLastPrint
// returns (nil, nil) when the user has no prior print.
type ThrottleStore interface {
	GetLastPrint(ctx context.Context, userID, courseID uint) (*LastPrint, error)
	RecordPrint(ctx context.Context, userID, courseID uint, last LastPrint) error
}

const throttleKeyTTL = 7 * 24 * time.Hour

// redisThrottleStore keeps throttle state in Redis and falls back to the
// print store when the key is missing (expired or never written).
type redisThrottleStore struct {
	client *redis.Client
	prints repositories.PrintRepository
	logger utils.Logger
}

func NewRedisThrottleStore(client *redis.Client, prints repositories.PrintRepository, logger utils.Logger) ThrottleStore {
	return &redisThrottleStore{
		client: client,
		prints: prints,
		logger: logger,
	}
}

func throttleKey(userID, courseID uint) string {
	return fmt.Sprintf("selftest:last_print:%d:%d", userID, courseID)
}

func (s *redisThrottleStore) GetLastPrint(ctx context.Context, userID, courseID uint) (*LastPrint, error) {
	data, err := s.client.Get(ctx, throttleKey(userID, courseID)).Bytes()
	if err == nil {
		var last LastPrint
		if err := json.Unmarshal(data, &last); err == nil {
			return &last, nil
		}
		s.logger.Warn("Discarding unreadable throttle state", "user_id", userID, "course_id", courseID)
	} else if err != redis.Nil {
		// Redis being down must not block print generation; fall through to
		// the database.
		s.logger.Error("Failed to read throttle state from redis", "error", err)
	}

	print, err := s.prints.GetLastPrint(ctx, userID, courseID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last print: %w", err)
	}

	last := LastPrint{StartTime: print.StartTime, NumQuestions: print.NumQuestions}
	return &last, nil
}

func (s *redisThrottleStore) RecordPrint(ctx context.Context, userID, courseID uint, last LastPrint) error {
	data, err := json.Marshal(last)
	if err != nil {
		return fmt.Errorf("failed to marshal throttle state: %w", err)
	}
	if err := s.client.Set(ctx, throttleKey(userID, courseID), data, throttleKeyTTL).Err(); err != nil {
		// Non-fatal: the database fallback still holds the truth.
		s.logger.Error("Failed to record throttle state in redis", "error", err)
	}
	return nil
}
