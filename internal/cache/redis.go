package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shubhsaxena/furniture-search/internal/config"
	"github.com/shubhsaxena/furniture-search/internal/models"
	"github.com/shubhsaxena/furniture-search/internal/observability"
)

const (
	kindSearch   = "search"
	kindStale    = "stale"
	kindSuggest  = "suggest"
	kindTrending = "trending"
)

// Key patterns dropped when the catalog changes.
var CatalogPatterns = []string{"sr:*", "ac:*"}

type RedisCache struct {
	client redis.UniversalClient
	ttl    config.CacheTTLConfig
	logger *zap.Logger
}

func NewRedisCache(cfg config.RedisConfig, logger *zap.Logger) (*RedisCache, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.New("redis: no addresses configured")
	}

	var client redis.UniversalClient

	if len(cfg.Addresses) > 1 {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        cfg.Addresses,
			Password:     cfg.Password,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:         cfg.Addresses[0],
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.Info("redis cache connected", zap.Strings("addresses", cfg.Addresses))

	return NewWithClient(client, cfg.TTL, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client redis.UniversalClient, ttl config.CacheTTLConfig, logger *zap.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func (rc *RedisCache) GetSearchResults(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	var resp models.SearchResponse
	ok, err := rc.getJSON(ctx, kindSearch, buildSearchKey(req), &resp)
	if err != nil || !ok {
		return nil, err
	}
	return &resp, nil
}

// SetSearchResults stores the response under its fresh key and refreshes the
// long-lived stale copy used when every search stage fails.
func (rc *RedisCache) SetSearchResults(ctx context.Context, req *models.SearchRequest, resp *models.SearchResponse) error {
	if err := rc.setJSON(ctx, buildSearchKey(req), resp, rc.ttlForQuery(req.Query)); err != nil {
		return err
	}
	return rc.setJSON(ctx, buildStaleKey(req), resp, rc.ttl.StaleFallback)
}

func (rc *RedisCache) GetStaleResults(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	var resp models.SearchResponse
	ok, err := rc.getJSON(ctx, kindStale, buildStaleKey(req), &resp)
	if err != nil || !ok {
		return nil, err
	}
	return &resp, nil
}

// IncrementHits counts cache hits for a request; the counter expires after
// the hit counter TTL.
func (rc *RedisCache) IncrementHits(ctx context.Context, req *models.SearchRequest) (int64, error) {
	key := buildHitsKey(req)
	pipe := rc.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rc.ttl.HitCounters)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("cache incr hits: %w", err)
	}
	return incr.Val(), nil
}

func (rc *RedisCache) GetSuggestions(ctx context.Context, prefix string, limit int) ([]models.Suggestion, error) {
	var out []models.Suggestion
	ok, err := rc.getJSON(ctx, kindSuggest, buildSuggestKey(prefix, limit), &out)
	if err != nil || !ok {
		return nil, err
	}
	return out, nil
}

func (rc *RedisCache) SetSuggestions(ctx context.Context, prefix string, limit int, suggestions []models.Suggestion) error {
	return rc.setJSON(ctx, buildSuggestKey(prefix, limit), suggestions, rc.ttl.Autocomplete)
}

func (rc *RedisCache) GetTrending(ctx context.Context, limit int) ([]models.TrendingQuery, error) {
	var out []models.TrendingQuery
	ok, err := rc.getJSON(ctx, kindTrending, buildTrendingKey(limit), &out)
	if err != nil || !ok {
		return nil, err
	}
	return out, nil
}

func (rc *RedisCache) SetTrending(ctx context.Context, limit int, queries []models.TrendingQuery) error {
	return rc.setJSON(ctx, buildTrendingKey(limit), queries, rc.ttl.Trending)
}

// InvalidatePattern deletes every key matching the given patterns. Stale
// copies are kept so they can still serve a total outage.
func (rc *RedisCache) InvalidatePattern(ctx context.Context, patterns []string) error {
	for _, pattern := range patterns {
		iter := rc.client.Scan(ctx, 0, pattern, 100).Iterator()
		var keys []string
		for iter.Next(ctx) {
			key := iter.Val()
			if strings.HasPrefix(key, "sr:stale:") {
				continue
			}
			keys = append(keys, key)
		}
		if err := iter.Err(); err != nil {
			rc.logger.Warn("cache scan error", zap.String("pattern", pattern), zap.Error(err))
			continue
		}
		if len(keys) > 0 {
			if err := rc.client.Del(ctx, keys...).Err(); err != nil {
				rc.logger.Warn("cache delete error", zap.Int("keys", len(keys)), zap.Error(err))
			}
		}
	}
	return nil
}

func (rc *RedisCache) HealthCheck(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

func (rc *RedisCache) getJSON(ctx context.Context, kind, key string, dst any) (bool, error) {
	val, err := rc.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		observability.CacheMisses.WithLabelValues(kind).Inc()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", kind, err)
	}

	observability.CacheHits.WithLabelValues(kind).Inc()
	if err := json.Unmarshal([]byte(val), dst); err != nil {
		return false, fmt.Errorf("cache unmarshal %s: %w", kind, err)
	}
	return true, nil
}

func (rc *RedisCache) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	return rc.client.Set(ctx, key, data, ttl).Err()
}

// ttlForQuery keeps browse listings longer than keyword searches.
func (rc *RedisCache) ttlForQuery(query string) time.Duration {
	if strings.TrimSpace(query) == "" && rc.ttl.BrowseResults > 0 {
		return rc.ttl.BrowseResults
	}
	return rc.ttl.SearchResults
}

func requestFingerprint(req *models.SearchRequest) string {
	q := strings.ToLower(strings.TrimSpace(req.Query))
	return hashString(fmt.Sprintf("%s:%d:%d", q, req.Page, req.PageSize))
}

func buildSearchKey(req *models.SearchRequest) string {
	return "sr:" + requestFingerprint(req)
}

func buildStaleKey(req *models.SearchRequest) string {
	return "sr:stale:" + requestFingerprint(req)
}

func buildHitsKey(req *models.SearchRequest) string {
	return "sr:hits:" + requestFingerprint(req)
}

func buildSuggestKey(prefix string, limit int) string {
	return "ac:" + hashString(fmt.Sprintf("%s:%d", prefix, limit))
}

func buildTrendingKey(limit int) string {
	return fmt.Sprintf("trend:%d", limit)
}

func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h[:8])
}
