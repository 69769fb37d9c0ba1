package store

import (
	"fmt"
	"time"

	"github.com/okhunjon/sportpay-bot/types"
)

// ChatState is the short-lived per-user conversation state: which service
// and plan the user is buying and the in-flight card-linking session.
type ChatState struct {
	Stage       string            `json:"stage,omitempty"`
	Service     types.ServiceKind `json:"service,omitempty"`
	PlanID      int64             `json:"plan_id,omitempty"`
	Provider    types.Provider    `json:"provider,omitempty"`
	CardNumber  string            `json:"card_number,omitempty"`
	CardSession string            `json:"card_session,omitempty"`
	CardToken   string            `json:"card_token,omitempty"`
}

const (
	StageAwaitCard   = "await_card"
	StageAwaitExpire = "await_expire"
	StageAwaitOTP    = "await_otp"
)

type RedisStateStore struct {
	client *RedisClient
	ttl    time.Duration
}

func NewRedisStateStore(redisClient *RedisClient, ttlHours int) *RedisStateStore {
	ttl := time.Duration(ttlHours) * time.Hour
	if ttlHours <= 0 {
		ttl = 24 * time.Hour
	}

	return &RedisStateStore{
		client: redisClient,
		ttl:    ttl,
	}
}

func (s *RedisStateStore) GetChatState(telegramID int64) (*ChatState, error) {
	key := s.client.generateKey("chat_state", fmt.Sprintf("%d", telegramID))
	var state ChatState
	if err := s.client.Get(key, &state); err != nil {
		return &ChatState{}, nil
	}
	return &state, nil
}

func (s *RedisStateStore) SetChatState(telegramID int64, state *ChatState) error {
	key := s.client.generateKey("chat_state", fmt.Sprintf("%d", telegramID))
	return s.client.Set(key, state, s.ttl)
}

func (s *RedisStateStore) ClearChatState(telegramID int64) error {
	key := s.client.generateKey("chat_state", fmt.Sprintf("%d", telegramID))
	return s.client.Del(key)
}
