package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker 멱등성 키 단위 처리 중 잠금 인터페이스
type Locker interface {
	// Reserve 멱등성 키를 예약하고 해제용 토큰 반환 (이미 다른 요청이 처리 중이면 false)
	Reserve(ctx context.Context, key string, ttl time.Duration) (token string, acquired bool, err error)
	// Release 같은 토큰으로 예약된 경우에만 멱등성 키 해제
	Release(ctx context.Context, key, token string) error
}

// releaseScript 토큰이 일치할 때만 삭제 (다른 요청의 잠금을 지우지 않도록)
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore Redis 기반 멱등성 잠금 저장소
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore Redis 기반 멱등성 잠금 저장소 생성
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

// Reserve 멱등성 키 예약. 토큰은 예약마다 새로 생성
func (s *RedisStore) Reserve(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	result, err := s.client.SetNX(ctx, s.FullKey(key), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}
	if !result {
		return "", false, nil
	}
	return token, true, nil
}

// Release 멱등성 키 해제
func (s *RedisStore) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, s.client, []string{s.FullKey(key)}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

// FullKey prefix 가 붙은 실제 Redis 키
func (s *RedisStore) FullKey(key string) string {
	return fmt.Sprintf("%s:lock:%s", s.prefix, key)
}
