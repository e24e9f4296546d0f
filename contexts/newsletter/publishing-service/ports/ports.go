package ports

import (
	"context"
	"time"

	"letterbox/contexts/newsletter/publishing-service/domain/entities"
)

// Tx is a storage transaction handed across the application layer. Adapters
// only accept transactions they created themselves.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type UnitOfWork interface {
	Begin(ctx context.Context) (Tx, error)
}

type IdempotencyRepository interface {
	// InsertClaim adds (owner, key) inside tx unless the pair already exists.
	// It reports whether a row was added. A conflicting claim that is not yet
	// committed makes the call wait until that transaction ends.
	InsertClaim(ctx context.Context, tx Tx, ownerID string, key string, createdAt time.Time) (bool, error)
	GetRecord(ctx context.Context, ownerID string, key string) (entities.IdempotencyRecord, bool, error)
	DeleteRecordCreatedBefore(ctx context.Context, ownerID string, key string, cutoff time.Time) error
	SaveResponse(ctx context.Context, tx Tx, record entities.IdempotencyRecord) error
}

type IssueRepository interface {
	InsertIssue(ctx context.Context, tx Tx, issue entities.Issue) error
	GetIssue(ctx context.Context, issueID string) (entities.Issue, error)
}

type IssueReader interface {
	GetIssue(ctx context.Context, issueID string) (entities.Issue, error)
}

// DeliveryLease is a queue row locked by one worker. Complete deletes the
// row and commits; Release rolls back and leaves it pending.
type DeliveryLease interface {
	Item() entities.DeliveryItem
	Complete(ctx context.Context) error
	Release(ctx context.Context) error
}

type DeliveryQueue interface {
	// EnqueueConfirmed inserts one row per confirmed subscriber inside tx.
	EnqueueConfirmed(ctx context.Context, tx Tx, issueID string) (int, error)
	// Dequeue locks one pending row that no other worker holds.
	Dequeue(ctx context.Context) (DeliveryLease, bool, error)
	CountPending(ctx context.Context, issueID string) (int, error)
}

type SubscriberDirectory interface {
	SubscriptionToken(ctx context.Context, email string) (string, bool, error)
}

type EmailSender interface {
	SendEmail(ctx context.Context, email entities.Email) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
