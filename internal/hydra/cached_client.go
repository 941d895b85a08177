package hydra

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedClient wraps a Client with a Redis read-through cache for the calls
// that are expensive and stable within a compilation window: extra-field
// listings, translations and branch expansions. Power-user association
// lookups are never cached (they gate visibility).
type CachedClient struct {
	inner  Client
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedClient decorates inner with caching. A nil redis client degrades
// to pass-through.
func NewCachedClient(inner Client, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedClient {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedClient{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (c *CachedClient) fetch(ctx context.Context, key string, dest interface{}, load func() (interface{}, error)) error {
	if c.client != nil {
		raw, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			if err := json.Unmarshal(raw, dest); err == nil {
				return nil
			}
			c.logger.Sugar().Warnw("discarding corrupt hydra cache entry", "key", key)
		} else if err != redis.Nil {
			c.logger.Sugar().Warnw("hydra cache read failed", "key", key, "error", err)
		}
	}

	value, err := load()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal hydra cache value for %s: %w", key, err)
	}
	if c.client != nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.Sugar().Warnw("hydra cache write failed", "key", key, "error", err)
		}
	}
	return json.Unmarshal(payload, dest)
}

// Translations resolves translation keys with caching per key set and lang.
func (c *CachedClient) Translations(ctx context.Context, keys []string, lang string) (map[string]string, error) {
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)
	key := "hydra:translations:" + lang + ":" + strings.Join(sorted, ",")

	out := map[string]string{}
	err := c.fetch(ctx, key, &out, func() (interface{}, error) {
		return c.inner.Translations(ctx, keys, lang)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CachedClient) cachedFields(ctx context.Context, entity string, load func() ([]ExtraField, error)) ([]ExtraField, error) {
	var out []ExtraField
	err := c.fetch(ctx, "hydra:extrafields:"+entity, &out, func() (interface{}, error) {
		return load()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UserExtraFields lists user custom fields.
func (c *CachedClient) UserExtraFields(ctx context.Context) ([]ExtraField, error) {
	return c.cachedFields(ctx, "user", func() ([]ExtraField, error) { return c.inner.UserExtraFields(ctx) })
}

// CourseExtraFields lists course custom fields.
func (c *CachedClient) CourseExtraFields(ctx context.Context) ([]ExtraField, error) {
	return c.cachedFields(ctx, "course", func() ([]ExtraField, error) { return c.inner.CourseExtraFields(ctx) })
}

// EnrollmentExtraFields lists enrollment custom fields.
func (c *CachedClient) EnrollmentExtraFields(ctx context.Context) ([]ExtraField, error) {
	return c.cachedFields(ctx, "enrollment", func() ([]ExtraField, error) { return c.inner.EnrollmentExtraFields(ctx) })
}

// BranchDescendants expands a branch with caching.
func (c *CachedClient) BranchDescendants(ctx context.Context, branchID int64) ([]int64, error) {
	var out []int64
	err := c.fetch(ctx, "hydra:branch:"+strconv.FormatInt(branchID, 10)+":descendants", &out, func() (interface{}, error) {
		return c.inner.BranchDescendants(ctx, branchID)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GroupMembers lists group members, uncached (membership churns).
func (c *CachedClient) GroupMembers(ctx context.Context, groupID int64) ([]int64, error) {
	return c.inner.GroupMembers(ctx, groupID)
}

// PowerUserUsers is a pass-through: visibility must stay fresh.
func (c *CachedClient) PowerUserUsers(ctx context.Context, userID int64) ([]int64, error) {
	return c.inner.PowerUserUsers(ctx, userID)
}

// PowerUserCourses is a pass-through: visibility must stay fresh.
func (c *CachedClient) PowerUserCourses(ctx context.Context, userID int64) ([]int64, error) {
	return c.inner.PowerUserCourses(ctx, userID)
}

// UserIDsByManager is a pass-through.
func (c *CachedClient) UserIDsByManager(ctx context.Context, managerID int64, managerType int) ([]int64, error) {
	return c.inner.UserIDsByManager(ctx, managerID, managerType)
}

var _ Client = (*CachedClient)(nil)
