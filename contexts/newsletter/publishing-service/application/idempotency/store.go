package idempotency

import (
	"context"
	"fmt"
	"time"

	application "letterbox/contexts/newsletter/publishing-service/application"
	"letterbox/contexts/newsletter/publishing-service/domain/entities"
	"letterbox/contexts/newsletter/publishing-service/domain/valueobjects"
	"letterbox/contexts/newsletter/publishing-service/ports"

	"go.uber.org/zap"
)

const DefaultTTL = 24 * time.Hour

// NextAction tells the caller whether to run the command on Tx or to replay
// a response saved by an earlier run. Exactly one of the fields is set.
type NextAction struct {
	Tx    ports.Tx
	Saved *entities.SavedResponse
}

func (a NextAction) IsReplay() bool {
	return a.Saved != nil
}

type FetchStatus int

const (
	FetchNotFound FetchStatus = iota
	FetchExpired
	FetchCompleted
)

func (s FetchStatus) String() string {
	switch s {
	case FetchExpired:
		return "expired"
	case FetchCompleted:
		return "completed"
	default:
		return "not_found"
	}
}

type FetchResult struct {
	Status   FetchStatus
	Response entities.SavedResponse
}

// Store deduplicates commands per (owner, key) and replays their saved
// responses until the record is older than TTL.
type Store struct {
	Records      ports.IdempotencyRepository
	Transactions ports.UnitOfWork
	Clock        ports.Clock
	TTL          time.Duration
	Logger       *zap.Logger
}

// Claim opens a transaction and tries to take ownership of (owner, key).
// The caller must Finalize the returned transaction or roll it back.
func (s Store) Claim(ctx context.Context, ownerID string, key valueobjects.IdempotencyKey) (NextAction, error) {
	logger := application.ResolveLogger(s.Logger)
	tx, err := s.Transactions.Begin(ctx)
	if err != nil {
		return NextAction{}, fmt.Errorf("begin idempotency transaction: %w", err)
	}

	inserted, err := s.Records.InsertClaim(ctx, tx, ownerID, key.String(), s.now())
	if err != nil {
		_ = tx.Rollback(ctx)
		return NextAction{}, fmt.Errorf("claim idempotency key: %w", err)
	}
	if inserted {
		return NextAction{Tx: tx}, nil
	}

	result, err := s.Fetch(ctx, ownerID, key)
	if err != nil {
		_ = tx.Rollback(ctx)
		return NextAction{}, err
	}

	switch result.Status {
	case FetchCompleted:
		if err := tx.Rollback(ctx); err != nil {
			logger.Warn("idempotency claim rollback failed",
				zap.String("event", "idempotency_claim_rollback_failed"),
				zap.String("module", application.ModuleName),
				zap.String("layer", "application"),
				zap.Error(err),
			)
		}
		saved := result.Response
		return NextAction{Saved: &saved}, nil
	case FetchExpired:
		inserted, err := s.Records.InsertClaim(ctx, tx, ownerID, key.String(), s.now())
		if err != nil {
			_ = tx.Rollback(ctx)
			return NextAction{}, fmt.Errorf("reclaim expired idempotency key: %w", err)
		}
		if !inserted {
			logger.Warn("expired idempotency key was reclaimed concurrently",
				zap.String("event", "idempotency_key_reclaimed_concurrently"),
				zap.String("module", application.ModuleName),
				zap.String("layer", "application"),
				zap.String("owner_id", ownerID),
				zap.String("idempotency_key", key.String()),
			)
		}
		return NextAction{Tx: tx}, nil
	default:
		// The competing claim has not committed a response yet. Processing
		// continues on tx, so the command may run twice for this key.
		logger.Warn("saved response could not be retrieved",
			zap.String("event", "idempotency_saved_response_missing"),
			zap.String("module", application.ModuleName),
			zap.String("layer", "application"),
			zap.String("owner_id", ownerID),
			zap.String("idempotency_key", key.String()),
		)
		return NextAction{Tx: tx}, nil
	}
}

// Fetch reads the committed state of (owner, key). Expired records are
// deleted before Expired is reported.
func (s Store) Fetch(ctx context.Context, ownerID string, key valueobjects.IdempotencyKey) (FetchResult, error) {
	logger := application.ResolveLogger(s.Logger)
	record, found, err := s.Records.GetRecord(ctx, ownerID, key.String())
	if err != nil {
		return FetchResult{}, fmt.Errorf("get idempotency record: %w", err)
	}
	if !found {
		return FetchResult{Status: FetchNotFound}, nil
	}

	now := s.now()
	if record.ExpiredAt(now, s.ttl()) {
		logger.Info("idempotency key expired",
			zap.String("event", "idempotency_key_expired"),
			zap.String("module", application.ModuleName),
			zap.String("layer", "application"),
			zap.String("owner_id", ownerID),
			zap.String("idempotency_key", key.String()),
			zap.Time("created_at", record.CreatedAt),
		)
		if err := s.Records.DeleteRecordCreatedBefore(ctx, ownerID, key.String(), now.Add(-s.ttl())); err != nil {
			return FetchResult{}, fmt.Errorf("delete expired idempotency record: %w", err)
		}
		return FetchResult{Status: FetchExpired}, nil
	}
	if !record.Completed() {
		return FetchResult{Status: FetchNotFound}, nil
	}
	return FetchResult{Status: FetchCompleted, Response: record.Response.Clone()}, nil
}

// Finalize stores response under (owner, key) on tx and commits tx, making
// every write the caller made on tx visible together with the response.
func (s Store) Finalize(
	ctx context.Context,
	tx ports.Tx,
	ownerID string,
	key valueobjects.IdempotencyKey,
	response entities.SavedResponse,
) (entities.SavedResponse, error) {
	saved := response.Clone()
	err := s.Records.SaveResponse(ctx, tx, entities.IdempotencyRecord{
		OwnerID:   ownerID,
		Key:       key.String(),
		CreatedAt: s.now(),
		Response:  &saved,
	})
	if err != nil {
		_ = tx.Rollback(ctx)
		return entities.SavedResponse{}, fmt.Errorf("save idempotent response: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return entities.SavedResponse{}, fmt.Errorf("commit idempotent response: %w", err)
	}
	return response, nil
}

func (s Store) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func (s Store) ttl() time.Duration {
	if s.TTL <= 0 {
		return DefaultTTL
	}
	return s.TTL
}
