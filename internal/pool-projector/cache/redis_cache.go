package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/parimutuel-ledger/pkg/contracts/events"
)

// RedisCache guarda o último snapshot de pool de cada evento no Redis
// TTL: tempo de expiração dos registros (0 = sem expiração)
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewRedisCache cria uma instância de cache Redis com TTL configurável
func NewRedisCache(c *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl}
}

// Key gera a chave Redis do snapshot atual de um evento
func Key(eventID string) string { return "pool:current:" + eventID }

// setIfNewer grava ARGV[1] só se a versão em cache for menor que ARGV[2].
// Devolve 1 quando grava e 0 quando o snapshot é antigo (ou repetido).
var setIfNewer = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
	local ok, doc = pcall(cjson.decode, cur)
	if ok and type(doc) == 'table' and tonumber(doc['version']) ~= nil
		and tonumber(doc['version']) >= tonumber(ARGV[2]) then
		return 0
	end
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

// SetCurrent grava o snapshot do evento se ele for mais novo que o do cache.
// applied=false indica snapshot antigo, que não deve ser repassado aos clientes.
func (r *RedisCache) SetCurrent(ctx context.Context, s events.PoolSnapshot) (applied bool, err error) {
	b, err := json.Marshal(s)
	if err != nil {
		return false, fmt.Errorf("marshal snapshot: %w", err)
	}
	n, err := setIfNewer.Run(ctx, r.Client, []string{Key(s.EventID)},
		b, strconv.FormatUint(s.Version, 10), r.TTL.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("set snapshot: %w", err)
	}
	return n == 1, nil
}

// SetIfAbsent grava o snapshot só se não houver um mais novo vindo do projetor
func (r *RedisCache) SetIfAbsent(ctx context.Context, s events.PoolSnapshot) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return r.Client.SetNX(ctx, Key(s.EventID), b, r.TTL).Err()
}

// GetCurrent lê o snapshot do evento; ok=false quando não está em cache
func (r *RedisCache) GetCurrent(ctx context.Context, eventID string) (snap events.PoolSnapshot, ok bool, err error) {
	b, err := r.Client.Get(ctx, Key(eventID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return snap, false, nil
	}
	if err != nil {
		return snap, false, err
	}
	if err := json.Unmarshal(b, &snap); err != nil {
		return snap, false, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, true, nil
}
