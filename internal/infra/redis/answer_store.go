package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"classquest-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// AnswerStore is the authoritative at-most-one-answer guard. A SETNX per
// (classroom, question, student) makes the first write win atomically, so two
// racing submissions (two tabs, retried requests) can never both be accepted.
type AnswerStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAnswerStore(client *redis.Client, ttl time.Duration) *AnswerStore {
	return &AnswerStore{client: client, ttl: ttl}
}

func (s *AnswerStore) Record(ctx context.Context, classroomID, questionID, studentID string, optionIndex int) error {
	key := s.key(classroomID, questionID, studentID)
	ok, err := s.client.SetNX(ctx, key, strconv.Itoa(optionIndex), s.ttl).Result()
	if err != nil {
		return fmt.Errorf("record answer: %w", err)
	}
	if !ok {
		return domain.ErrAlreadyAnswered
	}
	return nil
}

func (s *AnswerStore) key(classroomID, questionID, studentID string) string {
	return "classroom:" + classroomID + ":question:" + questionID + ":answer:" + studentID
}
