package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/daramad/daramad-engine/pkg/config"
	"github.com/daramad/daramad-engine/pkg/lexicon"
	"github.com/daramad/daramad-engine/pkg/models"
	"github.com/daramad/daramad-engine/pkg/repositories"
	"github.com/daramad/daramad-engine/pkg/textnorm"
)

// KeyParts are the inputs of a response cache key. ResolvedLabel and Intent
// are left out of the hash when empty.
type KeyParts struct {
	Message       string
	Category      string
	Tier          models.ModelTier
	ResolvedLabel string
	Intent        models.Intent
}

// DeriveKey returns the cache key for parts under a namespace version. The
// message is query-normalized first, so spelling variants share a key.
func DeriveKey(parts KeyParts, version int64) string {
	fields := []string{
		"msg:" + textnorm.NormalizeQuery(parts.Message),
		"cat:" + parts.Category,
		"tier:" + string(parts.Tier),
	}
	if parts.ResolvedLabel != "" {
		fields = append(fields, "job:"+parts.ResolvedLabel)
	}
	if parts.Intent != "" {
		fields = append(fields, "intent:"+string(parts.Intent))
	}
	sum := sha256.Sum256([]byte(strings.Join(fields, "|")))
	return fmt.Sprintf("resp:v%d:%s", version, hex.EncodeToString(sum[:]))
}

// ResponseCache stores composed answers keyed by message, job and tier.
type ResponseCache struct {
	store               repositories.CacheStore
	lex                 *lexicon.Lexicon
	cfg                 config.CacheConfig
	paidModelConfigured bool
	now                 func() time.Time
	logger              *zap.Logger
}

// NewResponseCache creates a ResponseCache. paidModelConfigured drives the
// rejection of cached internal-data answers.
func NewResponseCache(
	store repositories.CacheStore,
	lex *lexicon.Lexicon,
	cfg *config.CacheConfig,
	paidModelConfigured bool,
	logger *zap.Logger,
) *ResponseCache {
	return &ResponseCache{
		store:               store,
		lex:                 lex,
		cfg:                 *cfg,
		paidModelConfigured: paidModelConfigured,
		now:                 time.Now,
		logger:              logger.Named("response-cache"),
	}
}

// Key derives the key for parts under the current namespace version.
func (c *ResponseCache) Key(ctx context.Context, parts KeyParts) (string, int64, error) {
	version, err := c.store.Version(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read cache version: %w", err)
	}
	return DeriveKey(parts, version), version, nil
}

// Get returns the entry for key if present and still acceptable for the
// normalized message. Rejected entries are deleted and count as a miss.
func (c *ResponseCache) Get(ctx context.Context, key, normalizedMessage string) (*models.CacheEntry, bool, error) {
	entry, err := c.store.Get(ctx, key)
	if err != nil {
		recordCacheEvent("error")
		return nil, false, fmt.Errorf("failed to read cache: %w", err)
	}
	if entry == nil {
		recordCacheEvent("miss")
		return nil, false, nil
	}

	if !c.Accept(normalizedMessage, entry.Payload) {
		recordCacheEvent("rejected")
		c.logger.Debug("Rejected cached answer",
			zap.String("key", key),
			zap.String("source", string(entry.Payload.Source)))
		if err := c.store.Delete(ctx, key); err != nil {
			c.logger.Warn("Failed to delete rejected cache entry", zap.String("key", key), zap.Error(err))
		}
		return nil, false, nil
	}

	recordCacheEvent("hit")
	return entry, true, nil
}

// Accept reports whether a cached payload may still be served for the
// normalized message. Internal-data answers are refused once a paid model is
// configured, and answers to money questions must contain a digit.
func (c *ResponseCache) Accept(normalizedMessage string, payload models.ResponsePayload) bool {
	if payload.Source == models.SourceInternalData && c.paidModelConfigured {
		return false
	}
	if c.lex.HasIncomeKeyword(normalizedMessage) || c.lex.HasInvestmentKeyword(normalizedMessage) {
		return strings.IndexFunc(payload.Text, unicode.IsDigit) >= 0
	}
	return true
}

// Store writes payload under key with the tier's TTL. Payloads whose source
// is not cacheable are skipped.
func (c *ResponseCache) Store(ctx context.Context, key string, version int64, tier models.ModelTier, payload models.ResponsePayload) error {
	if !payload.Source.Cacheable() {
		return nil
	}
	entry := &models.CacheEntry{
		Key:              key,
		Payload:          payload,
		CreatedAt:        c.now().UTC(),
		TTL:              c.TTLFor(tier),
		Tier:             tier,
		NamespaceVersion: version,
	}
	if err := c.store.Set(ctx, entry); err != nil {
		recordCacheEvent("error")
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	recordCacheEvent("store")
	return nil
}

// Feedback extends an entry's lifetime on positive feedback, up to the
// configured maximum, and deletes it on negative feedback. It returns false
// when the entry does not exist.
func (c *ResponseCache) Feedback(ctx context.Context, key string, positive bool) (bool, error) {
	entry, err := c.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read cache: %w", err)
	}
	if entry == nil {
		return false, nil
	}

	if !positive {
		if err := c.store.Delete(ctx, key); err != nil {
			return false, fmt.Errorf("failed to delete cache entry: %w", err)
		}
		recordCacheEvent("feedback_delete")
		return true, nil
	}

	ttl := 2 * c.TTLFor(entry.Tier)
	if c.cfg.TTLMax > 0 {
		ttl = min(ttl, c.cfg.TTLMax)
	}
	ok, err := c.store.Expire(ctx, key, ttl)
	if err != nil {
		return false, err
	}
	if ok {
		recordCacheEvent("feedback_extend")
	}
	return ok, nil
}

// Invalidate bumps the namespace version, making every stored entry unreachable.
func (c *ResponseCache) Invalidate(ctx context.Context) (int64, error) {
	version, err := c.store.BumpVersion(ctx)
	if err != nil {
		return 0, err
	}
	recordCacheEvent("invalidate")
	c.logger.Info("Response cache invalidated", zap.Int64("version", version))
	return version, nil
}

// TTLFor returns the lifetime of entries for a tier. Unknown tiers use the
// fast tier's TTL.
func (c *ResponseCache) TTLFor(tier models.ModelTier) time.Duration {
	switch tier {
	case models.TierPremium:
		return c.cfg.TTLPremium
	case models.TierStandard:
		return c.cfg.TTLStandard
	default:
		return c.cfg.TTLFast
	}
}
