// Package publishingservice publishes newsletter issues behind an
// idempotency layer and delivers them through a transactional outbox.
//
// A publish claims the (owner, key) pair, stores the issue and one queue row
// per confirmed subscriber, then records the response, all in one
// transaction. Delivery workers drain the queue with row-level locking so
// concurrent workers never pick the same row.
package publishingservice
