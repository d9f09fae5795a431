package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/notihub/notihub/internal/telemetry"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

// RedisClientInterface defines the Redis client interface for testing
type RedisClientInterface interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Keys(ctx context.Context, pattern string) *redis.StringSliceCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	IncrBy(ctx context.Context, key string, value int64) *redis.IntCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Info(ctx context.Context, section ...string) *redis.StringCmd
	Close() error
}

// RedisServiceInterface defines the interface for Redis service operations
type RedisServiceInterface interface {
	SetCache(key string, data interface{}, ttlSeconds int) error
	GetCache(key string, dest interface{}) error
	DeleteCache(key string) error
	Set(key string, value interface{}, ttl time.Duration) error
	Get(key string) (string, error)
	Delete(key string) error
	Exists(key string) (bool, error)
	Expire(key string, ttl time.Duration) error
	TTL(key string) (time.Duration, error)
	DeletePattern(pattern string) (int64, error)
	SetFeatureFlag(key string, value bool, ttl time.Duration) error
	GetStats() map[string]interface{}
	InvalidateAll() error
	HealthCheck() bool
	Close() error
}

// RedisService provides Redis operations with caching strategies. It backs
// the translation engine's distributed cache tier, per-recipient notification
// preference lookups, idempotency-key dedup, and provider quota counters.
type RedisService struct {
	client RedisClientInterface
	config *RedisConfig
	ctx    context.Context
}

// CacheEntry represents a cached item with metadata
type CacheEntry struct {
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
	TTL       int         `json:"ttl"`
	Version   string      `json:"version"`
}

// CacheStats holds cache performance metrics
type CacheStats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Sets        int64 `json:"sets"`
	Deletes     int64 `json:"deletes"`
	Connections int   `json:"connections"`
}

// HitRate calculates the cache hit rate
func (cs *CacheStats) HitRate() float64 {
	total := cs.Hits + cs.Misses
	if total == 0 {
		return 0.0
	}
	return float64(cs.Hits) / float64(total)
}

var (
	// Global Redis service instance
	redisService *RedisService

	// Default TTL values
	DefaultTTL          = 3600  // 1 hour
	PreferenceCacheTTL  = 1800  // 30 minutes - resolved recipient channel/opt-out preferences
	TemplateCacheTTL    = 300   // 5 minutes - rendered template fragments
	TranslationCacheTTL = 86400 // 24 hours - translated strings, refreshed on the LRU tier above it
	IdempotencyKeyTTL   = 86400 // 24 hours - dedup window for repeated send requests
	FeatureFlagTTL      = 300   // 5 minutes
)

// NewRedisService creates a new Redis service instance
func NewRedisService(config *RedisConfig) (*RedisService, error) {
	ctx := telemetry.WithCorrelationID(context.Background(), telemetry.NewCorrelationID())
	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation": "redis_connection",
		"service":   "cache",
	})

	if config == nil {
		config = getConfigFromEnv()
	}

	logger = logger.WithFields(map[string]interface{}{
		"host":      config.Host,
		"port":      config.Port,
		"db":        config.DB,
		"pool_size": config.PoolSize,
	})

	logger.Info("Establishing Redis connection")

	rdb := redis.NewClient(&redis.Options{
		Addr:       fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password:   config.Password,
		DB:         config.DB,
		PoolSize:   config.PoolSize,
		MaxRetries: 3,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Error("Failed to connect to Redis")
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	service := &RedisService{
		client: rdb,
		config: config,
		ctx:    ctx,
	}

	logger.Info("Redis connected successfully")
	return service, nil
}

// NewInstrumentedRedisService creates a new Redis service instance with OpenTelemetry instrumentation
func NewInstrumentedRedisService(config *RedisConfig) (*RedisService, error) {
	ctx := telemetry.WithCorrelationID(context.Background(), telemetry.NewCorrelationID())
	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation":       "instrumented_redis_connection",
		"service":         "cache",
		"instrumentation": "opentelemetry",
	})

	if config == nil {
		config = getConfigFromEnv()
	}

	logger = logger.WithFields(map[string]interface{}{
		"host":      config.Host,
		"port":      config.Port,
		"db":        config.DB,
		"pool_size": config.PoolSize,
	})

	logger.Info("Establishing instrumented Redis connection")

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.WithError(err).Error("Failed to instrument Redis client with tracing")
		return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
	}
	if err := redisotel.InstrumentMetrics(client); err != nil {
		logger.WithError(err).Error("Failed to instrument Redis client with metrics")
		return nil, fmt.Errorf("failed to instrument redis metrics: %w", err)
	}
	logger.Debug("OpenTelemetry instrumentation added to Redis client")

	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Error("Failed to connect to instrumented Redis")
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Instrumented Redis connected successfully")
	return &RedisService{
		client: client,
		config: config,
		ctx:    ctx,
	}, nil
}

// InitializeGlobalRedis initializes the global Redis service
func InitializeGlobalRedis() error {
	service, err := NewRedisService(nil)
	if err != nil {
		return err
	}
	redisService = service
	return nil
}

// GetRedisService returns the global Redis service instance
func GetRedisService() *RedisService {
	if redisService == nil {
		logger := telemetry.GetContextualLogger(context.Background())
		logger.WithFields(map[string]interface{}{
			"operation": "get_redis_service",
			"service":   "cache",
			"error":     "service_not_initialized",
		}).Fatal("Redis service not initialized. Call InitializeGlobalRedis() first.")
	}
	return redisService
}

// getConfigFromEnv loads Redis configuration from environment variables
func getConfigFromEnv() *RedisConfig {
	port, _ := strconv.Atoi(getEnvOrDefault("REDIS_PORT", "6379"))
	db, _ := strconv.Atoi(getEnvOrDefault("REDIS_DB", "0"))
	poolSize, _ := strconv.Atoi(getEnvOrDefault("REDIS_POOL_SIZE", "10"))

	return &RedisConfig{
		Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
		Port:     port,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
		PoolSize: poolSize,
	}
}

// getEnvOrDefault returns environment variable value or default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Basic Redis Operations

// Set stores a value with TTL
func (r *RedisService) Set(key string, value interface{}, ttl time.Duration) error {
	ctx := telemetry.WithCorrelationID(r.ctx, telemetry.NewCorrelationID())
	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation":   "redis_set",
		"key":         key,
		"ttl_seconds": ttl.Seconds(),
		"service":     "cache",
	})

	logger.Debug("Setting cache value")

	data, err := json.Marshal(value)
	if err != nil {
		logger.WithError(err).Error("Failed to marshal value for cache")
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	expiration := ttl
	if ttl == 0 {
		expiration = time.Duration(DefaultTTL) * time.Second
		logger = logger.WithField("ttl_seconds", DefaultTTL)
	}

	err = r.client.Set(r.ctx, key, data, expiration).Err()
	if err != nil {
		logger.WithError(err).Error("Failed to set cache value")
	} else {
		logger.Debug("Cache value set successfully")
	}

	return err
}

// SetWithTTLSeconds stores a value with TTL in seconds (legacy method)
func (r *RedisService) SetWithTTLSeconds(key string, value interface{}, ttlSeconds int) error {
	ttl := time.Duration(DefaultTTL) * time.Second
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}
	return r.Set(key, value, ttl)
}

// Get retrieves a value stored by Set. A string that Set stored JSON-encoded
// is decoded back to the plain string; any other value is returned as stored.
func (r *RedisService) Get(key string) (string, error) {
	ctx := telemetry.WithCorrelationID(r.ctx, telemetry.NewCorrelationID())
	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation": "redis_get",
		"key":       key,
		"service":   "cache",
	})

	logger.Debug("Getting cache value")

	val, err := r.client.Get(r.ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			logger.Debug("Cache miss - key not found")
			return "", fmt.Errorf("key not found: %s", key)
		}
		logger.WithError(err).Error("Failed to get cache value")
		return "", fmt.Errorf("failed to get key %s: %w", key, err)
	}

	var decoded string
	if json.Unmarshal([]byte(val), &decoded) == nil {
		val = decoded
	}

	logger.Debug("Cache hit - value retrieved successfully")
	return val, nil
}

// GetWithUnmarshal retrieves a value and unmarshals it
func (r *RedisService) GetWithUnmarshal(key string, dest interface{}) error {
	ctx := telemetry.WithCorrelationID(r.ctx, telemetry.NewCorrelationID())
	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation": "redis_get_unmarshal",
		"key":       key,
		"service":   "cache",
	})

	logger.Debug("Getting and unmarshaling cache value")

	val, err := r.client.Get(r.ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			logger.Debug("Cache miss - key not found")
			return fmt.Errorf("key not found: %s", key)
		}
		logger.WithError(err).Error("Failed to get cache value")
		return fmt.Errorf("failed to get key %s: %w", key, err)
	}

	err = json.Unmarshal([]byte(val), dest)
	if err != nil {
		logger.WithError(err).Error("Failed to unmarshal cache value")
	} else {
		logger.Debug("Cache value retrieved and unmarshaled successfully")
	}

	return err
}

// GetString retrieves a string value
func (r *RedisService) GetString(key string) (string, error) {
	return r.client.Get(r.ctx, key).Result()
}

// Delete removes a key
func (r *RedisService) Delete(key string) error {
	ctx := telemetry.WithCorrelationID(r.ctx, telemetry.NewCorrelationID())
	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation": "redis_delete",
		"key":       key,
		"service":   "cache",
	})

	logger.Debug("Deleting cache key")

	err := r.client.Del(r.ctx, key).Err()
	if err != nil {
		logger.WithError(err).Error("Failed to delete cache key")
	} else {
		logger.Debug("Cache key deleted successfully")
	}

	return err
}

// Exists checks if a key exists
func (r *RedisService) Exists(key string) (bool, error) {
	result, err := r.client.Exists(r.ctx, key).Result()
	return result > 0, err
}

// Expire sets TTL for a key
func (r *RedisService) Expire(key string, ttl time.Duration) error {
	return r.client.Expire(r.ctx, key, ttl).Err()
}

// TTL gets remaining time to live
func (r *RedisService) TTL(key string) (time.Duration, error) {
	return r.client.TTL(r.ctx, key).Result()
}

// Increment atomically increments a counter key by delta, returning the new
// value. Used by provider quota accounting to track per-window send counts
// without a round trip of read-modify-write.
func (r *RedisService) Increment(key string, delta int64) (int64, error) {
	if delta == 1 {
		return r.client.Incr(r.ctx, key).Result()
	}
	return r.client.IncrBy(r.ctx, key, delta).Result()
}

// SetIfAbsent sets key to value only if it doesn't already exist, returning
// true if the key was newly set. Used for idempotency-key dedup: a second
// send request carrying the same key loses the race and is treated as a
// duplicate rather than resent.
func (r *RedisService) SetIfAbsent(key string, value interface{}, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("failed to marshal value: %w", err)
	}
	return r.client.SetNX(r.ctx, key, data, ttl).Result()
}

// Cache-specific Operations

// SetCache stores data with cache metadata
func (r *RedisService) SetCache(key string, data interface{}, ttl int) error {
	entry := CacheEntry{
		Data:      data,
		Timestamp: time.Now(),
		TTL:       ttl,
		Version:   "1.0",
	}
	return r.Set(fmt.Sprintf("cache:%s", key), entry, time.Duration(ttl)*time.Second)
}

// GetCache retrieves cached data
func (r *RedisService) GetCache(key string, dest interface{}) error {
	var entry CacheEntry
	if err := r.GetWithUnmarshal(fmt.Sprintf("cache:%s", key), &entry); err != nil {
		return err
	}

	if time.Since(entry.Timestamp) > time.Duration(entry.TTL)*time.Second {
		return fmt.Errorf("cache entry expired")
	}

	dataBytes, err := json.Marshal(entry.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(dataBytes, dest)
}

// DeleteCache removes cached data
func (r *RedisService) DeleteCache(key string) error {
	return r.Delete(fmt.Sprintf("cache:%s", key))
}

// Recipient Preference Caching

// SetPreferenceCache stores a recipient's resolved channel/opt-out preferences
func (r *RedisService) SetPreferenceCache(recipientID string, data interface{}) error {
	ctx := telemetry.WithCorrelationID(r.ctx, telemetry.NewCorrelationID())
	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation":    "redis_set_preference_cache",
		"recipient_id": recipientID,
		"ttl_seconds":  PreferenceCacheTTL,
		"service":      "cache",
	})

	logger.Debug("Setting recipient preference cache")

	cacheKey := fmt.Sprintf("preferences:%s", recipientID)
	err := r.SetCache(cacheKey, data, PreferenceCacheTTL)
	if err != nil {
		logger.WithError(err).Error("Failed to set preference cache")
	} else {
		logger.Debug("Preference cache set successfully")
	}

	return err
}

// GetPreferenceCache retrieves a recipient's cached preferences
func (r *RedisService) GetPreferenceCache(recipientID string, dest interface{}) error {
	cacheKey := fmt.Sprintf("preferences:%s", recipientID)
	return r.GetCache(cacheKey, dest)
}

// InvalidatePreferenceCache removes a recipient's cached preferences, used
// when the preference-center webhook reports a change.
func (r *RedisService) InvalidatePreferenceCache(recipientID string) error {
	cacheKey := fmt.Sprintf("preferences:%s", recipientID)
	return r.DeleteCache(cacheKey)
}

// Translation Caching

// SetTranslationCache stores a translated string under a cache key derived
// from the source text hash, target locale, and tier, acting as the
// distributed tier behind the in-process LRU.
func (r *RedisService) SetTranslationCache(cacheKey string, translated string) error {
	key := fmt.Sprintf("translation:%s", cacheKey)
	return r.Set(key, translated, time.Duration(TranslationCacheTTL)*time.Second)
}

// GetTranslationCache retrieves a previously cached translation.
func (r *RedisService) GetTranslationCache(cacheKey string) (string, error) {
	return r.Get(fmt.Sprintf("translation:%s", cacheKey))
}

// Template Rendering Cache

// SetTemplateCache stores a rendered template fragment for short-lived reuse
// across recipients receiving the same notification type/locale pair.
func (r *RedisService) SetTemplateCache(key string, rendered interface{}) error {
	return r.SetCache(fmt.Sprintf("template:%s", key), rendered, TemplateCacheTTL)
}

// GetTemplateCache retrieves a cached rendered template fragment.
func (r *RedisService) GetTemplateCache(key string, dest interface{}) error {
	return r.GetCache(fmt.Sprintf("template:%s", key), dest)
}

// Idempotency

// ReserveIdempotencyKey claims an idempotency key for the given TTL,
// returning true if this call is the first to claim it.
func (r *RedisService) ReserveIdempotencyKey(key string, ttl time.Duration) (bool, error) {
	if ttl == 0 {
		ttl = time.Duration(IdempotencyKeyTTL) * time.Second
	}
	return r.SetIfAbsent(fmt.Sprintf("idempotency:%s", key), time.Now(), ttl)
}

// Feature Flag Caching

// SetFeatureFlag stores feature flag value
func (r *RedisService) SetFeatureFlag(key string, value bool, ttl time.Duration) error {
	cacheKey := fmt.Sprintf("feature:%s", key)
	return r.Set(cacheKey, value, ttl)
}

// GetFeatureFlag retrieves feature flag value
func (r *RedisService) GetFeatureFlag(flagName string, dest interface{}) error {
	cacheKey := fmt.Sprintf("feature:%s", flagName)
	return r.GetWithUnmarshal(cacheKey, dest)
}

// Cache Invalidation Patterns

// DeletePattern removes keys matching a pattern
func (r *RedisService) DeletePattern(pattern string) (int64, error) {
	keys, err := r.client.Keys(r.ctx, pattern).Result()
	if err != nil {
		return 0, err
	}

	if len(keys) == 0 {
		return 0, nil
	}

	deleted, err := r.client.Del(r.ctx, keys...).Result()
	return deleted, err
}

// InvalidateAll removes all cache entries
func (r *RedisService) InvalidateAll() error {
	_, err := r.DeletePattern("cache:*")
	return err
}

// Health and Monitoring

// HealthCheck verifies Redis connectivity
func (r *RedisService) HealthCheck() bool {
	err := r.client.Ping(r.ctx).Err()
	return err == nil
}

// GetStats returns cache performance statistics
func (r *RedisService) GetStats() map[string]interface{} {
	info, err := r.client.Info(r.ctx, "stats").Result()
	if err != nil {
		return map[string]interface{}{
			"error": err.Error(),
		}
	}

	stats := map[string]interface{}{
		"hits":        int64(0),
		"misses":      int64(0),
		"sets":        int64(0),
		"deletes":     int64(0),
		"connections": 0,
		"hit_rate":    0.0,
	}

	lines := strings.Split(info, "\r\n")
	for _, line := range lines {
		if strings.Contains(line, "keyspace_hits:") {
			parts := strings.Split(line, ":")
			if len(parts) == 2 {
				hits, _ := strconv.ParseInt(parts[1], 10, 64)
				stats["hits"] = hits
			}
		}
		if strings.Contains(line, "keyspace_misses:") {
			parts := strings.Split(line, ":")
			if len(parts) == 2 {
				misses, _ := strconv.ParseInt(parts[1], 10, 64)
				stats["misses"] = misses
			}
		}
	}

	clientInfo, err := r.client.Info(r.ctx, "clients").Result()
	if err == nil {
		lines = strings.Split(clientInfo, "\r\n")
		for _, line := range lines {
			if strings.Contains(line, "connected_clients:") {
				parts := strings.Split(line, ":")
				if len(parts) == 2 {
					connections, _ := strconv.Atoi(parts[1])
					stats["connections"] = connections
				}
			}
		}
	}

	if hits, ok := stats["hits"].(int64); ok {
		if misses, ok := stats["misses"].(int64); ok {
			total := hits + misses
			if total > 0 {
				stats["hit_rate"] = float64(hits) / float64(total)
			}
		}
	}

	return stats
}

// Close closes the Redis connection
func (r *RedisService) Close() error {
	return r.client.Close()
}

// Utility Functions

// GetClient returns the underlying Redis client
func (r *RedisService) GetClient() *redis.Client {
	if client, ok := r.client.(*redis.Client); ok {
		return client
	}
	return nil
}

// GetContext returns the service context
func (r *RedisService) GetContext() context.Context {
	return r.ctx
}
