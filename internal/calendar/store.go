package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

const (
	StateTTL = 10 * time.Minute

	stateKeyPrefix = "calendar_state:"
	tokenKeyPrefix = "calendar_token:"
)

var (
	ErrStateInvalid = errors.New("oauth state is unknown or expired")
	ErrNotConnected = errors.New("google calendar is not connected")
)

// StateStore remembers which principal started an OAuth flow. Take consumes
// the state so a callback URL cannot be replayed.
type StateStore interface {
	Put(ctx context.Context, state, uid string) error
	Take(ctx context.Context, state string) (string, error)
}

// TokenStore keeps one OAuth token per principal.
type TokenStore interface {
	Get(ctx context.Context, uid string) (*oauth2.Token, error)
	Put(ctx context.Context, uid string, tok *oauth2.Token) error
	Delete(ctx context.Context, uid string) error
}

type RedisStateStore struct {
	rdb redis.Cmdable
}

func NewRedisStateStore(rdb redis.Cmdable) *RedisStateStore {
	return &RedisStateStore{rdb: rdb}
}

func (s *RedisStateStore) Put(ctx context.Context, state, uid string) error {
	return s.rdb.Set(ctx, stateKeyPrefix+state, uid, StateTTL).Err()
}

func (s *RedisStateStore) Take(ctx context.Context, state string) (string, error) {
	uid, err := s.rdb.GetDel(ctx, stateKeyPrefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrStateInvalid
	}
	if err != nil {
		return "", err
	}
	return uid, nil
}

type pendingState struct {
	uid     string
	expires time.Time
}

type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]pendingState
	now    func() time.Time
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]pendingState), now: time.Now}
}

func (s *MemoryStateStore) Put(_ context.Context, state, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, p := range s.states {
		if now.After(p.expires) {
			delete(s.states, k)
		}
	}
	s.states[state] = pendingState{uid: uid, expires: now.Add(StateTTL)}
	return nil
}

func (s *MemoryStateStore) Take(_ context.Context, state string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.states[state]
	delete(s.states, state)
	if !ok || s.now().After(p.expires) {
		return "", ErrStateInvalid
	}
	return p.uid, nil
}

// RedisTokenStore persists sealed tokens without expiry; the refresh token
// outlives the access token.
type RedisTokenStore struct {
	rdb    redis.Cmdable
	sealer *Sealer
}

func NewRedisTokenStore(rdb redis.Cmdable, sealer *Sealer) *RedisTokenStore {
	return &RedisTokenStore{rdb: rdb, sealer: sealer}
}

func (s *RedisTokenStore) Get(ctx context.Context, uid string) (*oauth2.Token, error) {
	sealed, err := s.rdb.Get(ctx, tokenKeyPrefix+uid).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotConnected
	}
	if err != nil {
		return nil, err
	}
	return openToken(s.sealer, uid, sealed)
}

func (s *RedisTokenStore) Put(ctx context.Context, uid string, tok *oauth2.Token) error {
	sealed, err := sealToken(s.sealer, uid, tok)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, tokenKeyPrefix+uid, sealed, 0).Err()
}

func (s *RedisTokenStore) Delete(ctx context.Context, uid string) error {
	return s.rdb.Del(ctx, tokenKeyPrefix+uid).Err()
}

// MemoryTokenStore seals tokens too so both stores behave the same.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	sealed map[string]string
	sealer *Sealer
}

func NewMemoryTokenStore(sealer *Sealer) *MemoryTokenStore {
	return &MemoryTokenStore{sealed: make(map[string]string), sealer: sealer}
}

func (s *MemoryTokenStore) Get(_ context.Context, uid string) (*oauth2.Token, error) {
	s.mu.RLock()
	sealed, ok := s.sealed[uid]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotConnected
	}
	return openToken(s.sealer, uid, sealed)
}

func (s *MemoryTokenStore) Put(_ context.Context, uid string, tok *oauth2.Token) error {
	sealed, err := sealToken(s.sealer, uid, tok)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.sealed[uid] = sealed
	s.mu.Unlock()
	return nil
}

func (s *MemoryTokenStore) Delete(_ context.Context, uid string) error {
	s.mu.Lock()
	delete(s.sealed, uid)
	s.mu.Unlock()
	return nil
}

func sealToken(sealer *Sealer, uid string, tok *oauth2.Token) (string, error) {
	raw, err := json.Marshal(tok)
	if err != nil {
		return "", err
	}
	return sealer.Seal(raw, []byte(uid))
}

func openToken(sealer *Sealer, uid, sealed string) (*oauth2.Token, error) {
	raw, err := sealer.Open(sealed, []byte(uid))
	if err != nil {
		return nil, fmt.Errorf("open calendar token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("decode calendar token: %w", err)
	}
	return &tok, nil
}
