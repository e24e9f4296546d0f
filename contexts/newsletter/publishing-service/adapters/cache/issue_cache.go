package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	application "letterbox/contexts/newsletter/publishing-service/application"
	"letterbox/contexts/newsletter/publishing-service/domain/entities"
	"letterbox/contexts/newsletter/publishing-service/ports"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultIssueTTL = time.Hour
	issueKeyPrefix  = "newsletter:issue:"
)

type cachedIssue struct {
	IssueID     string    `json:"issue_id"`
	Title       string    `json:"title"`
	TextContent string    `json:"text_content"`
	HTMLContent string    `json:"html_content"`
	PublishedBy string    `json:"published_by"`
	PublishedAt time.Time `json:"published_at"`
}

// IssueCache is a read-through cache in front of an IssueReader. Issues never
// change after publishing, so entries only expire by TTL. Redis failures fall
// back to the underlying reader.
type IssueCache struct {
	next   ports.IssueReader
	client goredis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

func NewIssueCache(next ports.IssueReader, client goredis.UniversalClient, ttl time.Duration, logger *zap.Logger) *IssueCache {
	if ttl <= 0 {
		ttl = DefaultIssueTTL
	}
	return &IssueCache{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: application.ResolveLogger(logger),
	}
}

func (c *IssueCache) GetIssue(ctx context.Context, issueID string) (entities.Issue, error) {
	key := issueKeyPrefix + strings.TrimSpace(issueID)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached cachedIssue
		if decodeErr := json.Unmarshal(raw, &cached); decodeErr == nil {
			return cached.toEntity(), nil
		}
		c.logger.Warn("cached issue could not be decoded",
			zap.String("event", "issue_cache_decode_failed"),
			zap.String("module", application.ModuleName),
			zap.String("layer", "adapter"),
			zap.String("issue_id", issueID),
		)
	case !errors.Is(err, goredis.Nil):
		c.logger.Warn("issue cache read failed",
			zap.String("event", "issue_cache_read_failed"),
			zap.String("module", application.ModuleName),
			zap.String("layer", "adapter"),
			zap.String("issue_id", issueID),
			zap.Error(err),
		)
	}

	issue, err := c.next.GetIssue(ctx, issueID)
	if err != nil {
		return entities.Issue{}, err
	}

	payload, err := json.Marshal(cachedIssueFromEntity(issue))
	if err != nil {
		return issue, nil
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("issue cache write failed",
			zap.String("event", "issue_cache_write_failed"),
			zap.String("module", application.ModuleName),
			zap.String("layer", "adapter"),
			zap.String("issue_id", issueID),
			zap.Error(err),
		)
	}
	return issue, nil
}

func cachedIssueFromEntity(issue entities.Issue) cachedIssue {
	return cachedIssue{
		IssueID:     issue.IssueID,
		Title:       issue.Title,
		TextContent: issue.TextContent,
		HTMLContent: issue.HTMLContent,
		PublishedBy: issue.PublishedBy,
		PublishedAt: issue.PublishedAt.UTC(),
	}
}

func (c cachedIssue) toEntity() entities.Issue {
	return entities.Issue{
		IssueID:     c.IssueID,
		Title:       c.Title,
		TextContent: c.TextContent,
		HTMLContent: c.HTMLContent,
		PublishedBy: c.PublishedBy,
		PublishedAt: c.PublishedAt.UTC(),
	}
}
