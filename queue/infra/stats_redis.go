package infra

import (
	"context"
	"strconv"
	"strings"
	"time"

	"fare-monitor/queue/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore espelha os desfechos da fila no Redis, para que várias
// instâncias alimentem o mesmo painel. Layout (prefixo padrão farequeue:stats):
//
//	<p>:total              hash kind -> n (cumulativo, sem TTL)
//	<p>:minute:<yyyymmddhhmm> hash kind -> n
//	<p>:attempts           hash tentativas -> n
//	<p>:session:<id>       hash kind -> n (opcional)
type RedisStatsStore struct {
	rdb  redis.Cmdable
	keys statsKeys
	ttl  time.Duration

	perMinute     bool
	trackSessions bool
}

type statsKeys struct{ prefix string }

func (k statsKeys) total() string    { return k.prefix + ":total" }
func (k statsKeys) attempts() string { return k.prefix + ":attempts" }

func (k statsKeys) minute(at time.Time) string {
	return k.prefix + ":minute:" + at.UTC().Format("200601021504")
}

func (k statsKeys) session(id string) string { return k.prefix + ":session:" + id }

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		if p := strings.Trim(strings.TrimSpace(prefix), ":"); p != "" {
			s.keys.prefix = p
		}
	}
}

// WithStatsTTL vale para as chaves por minuto e por sessão.
func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

// WithStatsBucket aceita "minute" (padrão) ou "none".
func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.perMinute = strings.EqualFold(strings.TrimSpace(bucket), "minute") }
}

func WithStatsTrackSessions(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackSessions = track }
}

func NewRedisStatsStore(rdb redis.Cmdable, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:       rdb,
		keys:      statsKeys{prefix: "farequeue:stats"},
		ttl:       24 * time.Hour,
		perMinute: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// statsField é o campo do hash para um evento: o kind final ou "retry".
func statsField(ev domain.StatsEvent) string {
	if ev.Retry {
		return "retry"
	}
	return ev.Kind.String()
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	field := statsField(ev)
	session := strings.TrimSpace(ev.Session)

	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.HIncrBy(ctx, s.keys.total(), field, 1)
		if s.perMinute {
			s.incrExpiring(ctx, p, s.keys.minute(at), field)
		}
		if !ev.Retry && ev.Attempts > 0 {
			p.HIncrBy(ctx, s.keys.attempts(), strconv.Itoa(ev.Attempts), 1)
		}
		if s.trackSessions && session != "" {
			s.incrExpiring(ctx, p, s.keys.session(session), field)
		}
		return nil
	})
	return err
}

func (s *RedisStatsStore) incrExpiring(ctx context.Context, p redis.Pipeliner, key, field string) {
	p.HIncrBy(ctx, key, field, 1)
	if s.ttl > 0 {
		p.Expire(ctx, key, s.ttl)
	}
}

// Totals lê os contadores cumulativos (kind -> n).
func (s *RedisStatsStore) Totals(ctx context.Context) (map[string]int64, error) {
	raw, err := s.rdb.HGetAll(ctx, s.keys.total()).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out[k] = n
	}
	return out, nil
}
