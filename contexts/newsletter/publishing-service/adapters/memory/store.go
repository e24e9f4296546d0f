package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"letterbox/contexts/newsletter/publishing-service/domain/entities"
	domainerrors "letterbox/contexts/newsletter/publishing-service/domain/errors"
	"letterbox/contexts/newsletter/publishing-service/ports"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

var (
	errTxClosed    = errors.New("memory transaction already closed")
	errLeaseClosed = errors.New("memory delivery lease already closed")
)

type recordKey struct {
	ownerID string
	key     string
}

// Store keeps every table in maps and stages writes per transaction. An
// uncommitted idempotency claim blocks conflicting writers until it ends,
// and leased queue rows are skipped by other dequeuers.
type Store struct {
	mu    sync.Mutex
	clock clockwork.Clock

	records map[recordKey]entities.IdempotencyRecord
	claims  map[recordKey]*transaction

	issues      map[string]entities.Issue
	queue       map[entities.DeliveryItem]struct{}
	leased      map[entities.DeliveryItem]struct{}
	subscribers map[string]entities.Subscriber
}

func NewStore(clock clockwork.Clock, subscribers []entities.Subscriber) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &Store{
		clock:       clock,
		records:     make(map[recordKey]entities.IdempotencyRecord),
		claims:      make(map[recordKey]*transaction),
		issues:      make(map[string]entities.Issue),
		queue:       make(map[entities.DeliveryItem]struct{}),
		leased:      make(map[entities.DeliveryItem]struct{}),
		subscribers: make(map[string]entities.Subscriber, len(subscribers)),
	}
	for _, item := range subscribers {
		s.subscribers[strings.TrimSpace(item.Email)] = item
	}
	return s
}

type transaction struct {
	store    *Store
	done     chan struct{}
	finished bool

	records    map[recordKey]entities.IdempotencyRecord
	issues     []entities.Issue
	deliveries []entities.DeliveryItem
}

func (s *Store) Begin(_ context.Context) (ports.Tx, error) {
	return &transaction{
		store:   s,
		done:    make(chan struct{}),
		records: make(map[recordKey]entities.IdempotencyRecord),
	}, nil
}

func (t *transaction) Commit(_ context.Context) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.finished {
		return errTxClosed
	}
	for key, record := range t.records {
		s.records[key] = record
	}
	for _, issue := range t.issues {
		s.issues[issue.IssueID] = issue
	}
	for _, item := range t.deliveries {
		s.queue[item] = struct{}{}
	}
	s.finishLocked(t)
	return nil
}

func (t *transaction) Rollback(_ context.Context) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.finished {
		return nil
	}
	s.finishLocked(t)
	return nil
}

func (s *Store) finishLocked(t *transaction) {
	for key, holder := range s.claims {
		if holder == t {
			delete(s.claims, key)
		}
	}
	t.finished = true
	close(t.done)
}

func (s *Store) own(tx ports.Tx) (*transaction, error) {
	t, ok := tx.(*transaction)
	if !ok || t.store != s {
		return nil, domainerrors.ErrUnknownTransaction
	}
	return t, nil
}

// waitForHolder blocks until the transaction holding key ends. It returns
// false when t may proceed under s.mu, which stays locked in that case.
func (s *Store) waitForHolder(ctx context.Context, t *transaction, key recordKey) (bool, error) {
	holder, held := s.claims[key]
	if !held || holder == t {
		return false, nil
	}
	s.mu.Unlock()
	select {
	case <-holder.done:
		return true, nil
	case <-ctx.Done():
		return true, ctx.Err()
	}
}

func (s *Store) InsertClaim(
	ctx context.Context,
	tx ports.Tx,
	ownerID string,
	key string,
	createdAt time.Time,
) (bool, error) {
	t, err := s.own(tx)
	if err != nil {
		return false, err
	}
	k := recordKey{ownerID: ownerID, key: key}
	for {
		s.mu.Lock()
		if t.finished {
			s.mu.Unlock()
			return false, errTxClosed
		}
		if _, staged := t.records[k]; staged {
			s.mu.Unlock()
			return false, nil
		}
		retry, err := s.waitForHolder(ctx, t, k)
		if err != nil {
			return false, err
		}
		if retry {
			continue
		}
		if _, exists := s.records[k]; exists {
			s.mu.Unlock()
			return false, nil
		}
		s.claims[k] = t
		t.records[k] = entities.IdempotencyRecord{
			OwnerID:   ownerID,
			Key:       key,
			CreatedAt: createdAt.UTC(),
		}
		s.mu.Unlock()
		return true, nil
	}
}

func (s *Store) GetRecord(_ context.Context, ownerID string, key string) (entities.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[recordKey{ownerID: ownerID, key: key}]
	if !ok {
		return entities.IdempotencyRecord{}, false, nil
	}
	return cloneRecord(record), true, nil
}

func (s *Store) DeleteRecordCreatedBefore(_ context.Context, ownerID string, key string, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := recordKey{ownerID: ownerID, key: key}
	if record, ok := s.records[k]; ok && record.CreatedAt.Before(cutoff) {
		delete(s.records, k)
	}
	return nil
}

// SaveResponse behaves like an upsert: the claim timestamp of an existing
// row is kept and only the response changes.
func (s *Store) SaveResponse(ctx context.Context, tx ports.Tx, record entities.IdempotencyRecord) error {
	t, err := s.own(tx)
	if err != nil {
		return err
	}
	k := recordKey{ownerID: record.OwnerID, key: record.Key}
	for {
		s.mu.Lock()
		if t.finished {
			s.mu.Unlock()
			return errTxClosed
		}
		retry, err := s.waitForHolder(ctx, t, k)
		if err != nil {
			return err
		}
		if retry {
			continue
		}
		break
	}
	defer s.mu.Unlock()

	next := cloneRecord(record)
	next.CreatedAt = record.CreatedAt.UTC()
	if staged, ok := t.records[k]; ok {
		next.CreatedAt = staged.CreatedAt
	} else if committed, ok := s.records[k]; ok {
		next.CreatedAt = committed.CreatedAt
	}
	s.claims[k] = t
	t.records[k] = next
	return nil
}

func (s *Store) InsertIssue(_ context.Context, tx ports.Tx, issue entities.Issue) error {
	t, err := s.own(tx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.finished {
		return errTxClosed
	}
	t.issues = append(t.issues, issue)
	return nil
}

func (s *Store) GetIssue(_ context.Context, issueID string) (entities.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue, ok := s.issues[strings.TrimSpace(issueID)]
	if !ok {
		return entities.Issue{}, domainerrors.ErrIssueNotFound
	}
	return issue, nil
}

func (s *Store) EnqueueConfirmed(_ context.Context, tx ports.Tx, issueID string) (int, error) {
	t, err := s.own(tx)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.finished {
		return 0, errTxClosed
	}
	staged := make(map[entities.DeliveryItem]struct{}, len(t.deliveries))
	for _, item := range t.deliveries {
		staged[item] = struct{}{}
	}

	added := 0
	for _, subscriber := range s.subscribers {
		if subscriber.Status != entities.SubscriberStatusConfirmed {
			continue
		}
		item := entities.DeliveryItem{IssueID: issueID, RecipientEmail: subscriber.Email}
		if _, exists := s.queue[item]; exists {
			continue
		}
		if _, exists := staged[item]; exists {
			continue
		}
		t.deliveries = append(t.deliveries, item)
		added++
	}
	return added, nil
}

func (s *Store) Dequeue(_ context.Context) (ports.DeliveryLease, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []entities.DeliveryItem
	for item := range s.queue {
		if _, locked := s.leased[item]; !locked {
			candidates = append(candidates, item)
		}
	}
	if len(candidates) == 0 {
		return nil, false, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].IssueID != candidates[j].IssueID {
			return candidates[i].IssueID < candidates[j].IssueID
		}
		return candidates[i].RecipientEmail < candidates[j].RecipientEmail
	})
	item := candidates[0]
	s.leased[item] = struct{}{}
	return &lease{store: s, item: item}, true, nil
}

func (s *Store) CountPending(_ context.Context, issueID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for item := range s.queue {
		if item.IssueID == issueID {
			count++
		}
	}
	return count, nil
}

// PendingDeliveries returns committed queue rows, including leased ones.
func (s *Store) PendingDeliveries() []entities.DeliveryItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]entities.DeliveryItem, 0, len(s.queue))
	for item := range s.queue {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].IssueID != items[j].IssueID {
			return items[i].IssueID < items[j].IssueID
		}
		return items[i].RecipientEmail < items[j].RecipientEmail
	})
	return items
}

func (s *Store) IssueCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.issues)
}

type lease struct {
	store  *Store
	item   entities.DeliveryItem
	closed bool
}

func (l *lease) Item() entities.DeliveryItem {
	return l.item
}

func (l *lease) Complete(_ context.Context) error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()

	if l.closed {
		return errLeaseClosed
	}
	delete(l.store.queue, l.item)
	delete(l.store.leased, l.item)
	l.closed = true
	return nil
}

func (l *lease) Release(_ context.Context) error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()

	if l.closed {
		return nil
	}
	delete(l.store.leased, l.item)
	l.closed = true
	return nil
}

func (s *Store) AddSubscriber(subscriber entities.Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers[strings.TrimSpace(subscriber.Email)] = subscriber
}

func (s *Store) SubscriptionToken(_ context.Context, email string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subscriber, ok := s.subscribers[strings.TrimSpace(email)]
	if !ok || strings.TrimSpace(subscriber.SubscriptionToken) == "" {
		return "", false, nil
	}
	return subscriber.SubscriptionToken, true, nil
}

func (s *Store) Now() time.Time {
	return s.clock.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func cloneRecord(record entities.IdempotencyRecord) entities.IdempotencyRecord {
	out := record
	if record.Response != nil {
		response := record.Response.Clone()
		out.Response = &response
	}
	return out
}
