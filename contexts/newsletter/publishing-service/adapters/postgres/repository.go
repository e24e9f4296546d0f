package postgresadapter

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	application "letterbox/contexts/newsletter/publishing-service/application"
	"letterbox/contexts/newsletter/publishing-service/domain/entities"
	domainerrors "letterbox/contexts/newsletter/publishing-service/domain/errors"
	"letterbox/contexts/newsletter/publishing-service/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const subscriberStatusConfirmed = "confirmed"

type Repository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewRepository(db *gorm.DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: application.ResolveLogger(logger),
	}
}

type gormTx struct {
	repo *Repository
	db   *gorm.DB
}

func (r *Repository) Begin(ctx context.Context) (ports.Tx, error) {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &gormTx{repo: r, db: tx}, nil
}

func (t *gormTx) Commit(_ context.Context) error {
	return t.db.Commit().Error
}

// Rollback is a no-op for a transaction that already ended, including one
// the driver rolled back because its context was cancelled.
func (t *gormTx) Rollback(_ context.Context) error {
	err := t.db.Rollback().Error
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func (r *Repository) txDB(ctx context.Context, tx ports.Tx) (*gorm.DB, error) {
	t, ok := tx.(*gormTx)
	if !ok || t.repo != r {
		return nil, domainerrors.ErrUnknownTransaction
	}
	return t.db.WithContext(ctx), nil
}

func (r *Repository) InsertClaim(
	ctx context.Context,
	tx ports.Tx,
	ownerID string,
	key string,
	createdAt time.Time,
) (bool, error) {
	db, err := r.txDB(ctx, tx)
	if err != nil {
		return false, err
	}
	row := idempotencyModel{
		UserID:         ownerID,
		IdempotencyKey: key,
		CreatedAt:      createdAt.UTC(),
	}
	result := db.
		Select("user_id", "idempotency_key", "created_at").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "idempotency_key"}},
			DoNothing: true,
		}).
		Create(&row)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) GetRecord(ctx context.Context, ownerID string, key string) (entities.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", ownerID, key).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.IdempotencyRecord{}, false, nil
		}
		return entities.IdempotencyRecord{}, false, err
	}
	return row.toEntity(), true, nil
}

func (r *Repository) DeleteRecordCreatedBefore(ctx context.Context, ownerID string, key string, cutoff time.Time) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ? AND created_at < ?", ownerID, key, cutoff.UTC()).
		Delete(&idempotencyModel{}).
		Error
}

// SaveResponse upserts so that a claim which never inserted its own row
// still records the response. created_at of an existing row is kept.
func (r *Repository) SaveResponse(ctx context.Context, tx ports.Tx, record entities.IdempotencyRecord) error {
	db, err := r.txDB(ctx, tx)
	if err != nil {
		return err
	}
	row := idempotencyModelFromEntity(record)
	return db.
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "idempotency_key"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"response_status_code",
				"response_headers",
				"response_body",
			}),
		}).
		Create(&row).
		Error
}

func (r *Repository) InsertIssue(ctx context.Context, tx ports.Tx, issue entities.Issue) error {
	db, err := r.txDB(ctx, tx)
	if err != nil {
		return err
	}
	row := issueModelFromEntity(issue)
	if err := db.Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrIssueAlreadyExists
		}
		return err
	}
	return nil
}

func (r *Repository) GetIssue(ctx context.Context, issueID string) (entities.Issue, error) {
	var row issueModel
	err := r.db.WithContext(ctx).
		Where("newsletter_issue_id = ?", strings.TrimSpace(issueID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Issue{}, domainerrors.ErrIssueNotFound
		}
		return entities.Issue{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) EnqueueConfirmed(ctx context.Context, tx ports.Tx, issueID string) (int, error) {
	db, err := r.txDB(ctx, tx)
	if err != nil {
		return 0, err
	}
	result := db.Exec(
		`INSERT INTO issue_delivery_queue (newsletter_issue_id, subscriber_email_address)
		SELECT CAST(? AS uuid), email FROM subscriptions WHERE status = ?
		ON CONFLICT DO NOTHING`,
		issueID,
		subscriberStatusConfirmed,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

func (r *Repository) Dequeue(ctx context.Context) (ports.DeliveryLease, bool, error) {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, false, tx.Error
	}

	var rows []deliveryModel
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Limit(1).
		Find(&rows).
		Error
	if err != nil {
		if rollbackErr := tx.Rollback().Error; rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			r.logger.Warn("delivery dequeue rollback failed",
				zap.String("event", "issue_delivery_dequeue_rollback_failed"),
				zap.String("module", application.ModuleName),
				zap.String("layer", "adapter"),
				zap.Error(rollbackErr),
			)
		}
		return nil, false, err
	}
	if len(rows) == 0 {
		if err := tx.Rollback().Error; err != nil && !errors.Is(err, sql.ErrTxDone) {
			return nil, false, err
		}
		return nil, false, nil
	}
	return &deliveryLease{tx: tx, item: rows[0].toEntity()}, true, nil
}

func (r *Repository) CountPending(ctx context.Context, issueID string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&deliveryModel{}).
		Where("newsletter_issue_id = ?", strings.TrimSpace(issueID)).
		Count(&count).
		Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *Repository) SubscriptionToken(ctx context.Context, email string) (string, bool, error) {
	var tokens []string
	err := r.db.WithContext(ctx).
		Table("subscription_tokens AS st").
		Joins("JOIN subscriptions s ON st.subscriber_id = s.id").
		Where("s.email = ?", strings.TrimSpace(email)).
		Limit(1).
		Pluck("st.subscription_token", &tokens).
		Error
	if err != nil {
		return "", false, err
	}
	if len(tokens) == 0 {
		return "", false, nil
	}
	return tokens[0], true, nil
}

// AddSubscriber stores a subscriber and, when present, its subscription token.
func (r *Repository) AddSubscriber(ctx context.Context, subscriber entities.Subscriber) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := subscriptionModel{
			ID:           strings.TrimSpace(subscriber.SubscriberID),
			Email:        strings.TrimSpace(subscriber.Email),
			Name:         strings.TrimSpace(subscriber.Name),
			Status:       string(subscriber.Status),
			SubscribedAt: subscriber.SubscribedAt.UTC(),
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if strings.TrimSpace(subscriber.SubscriptionToken) == "" {
			return nil
		}
		return tx.Create(&subscriptionTokenModel{
			SubscriptionToken: subscriber.SubscriptionToken,
			SubscriberID:      row.ID,
		}).Error
	})
}

type deliveryLease struct {
	tx   *gorm.DB
	item entities.DeliveryItem
}

func (l *deliveryLease) Item() entities.DeliveryItem {
	return l.item
}

func (l *deliveryLease) Complete(_ context.Context) error {
	err := l.tx.
		Where("newsletter_issue_id = ? AND subscriber_email_address = ?", l.item.IssueID, l.item.RecipientEmail).
		Delete(&deliveryModel{}).
		Error
	if err != nil {
		_ = l.tx.Rollback().Error
		return err
	}
	return l.tx.Commit().Error
}

func (l *deliveryLease) Release(_ context.Context) error {
	err := l.tx.Rollback().Error
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
