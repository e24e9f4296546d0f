package entities

import "time"

// HeaderPair keeps a header value as raw bytes so a replayed response can
// carry values that are not valid UTF-8. Names may repeat.
type HeaderPair struct {
	Name  string
	Value []byte
}

// SavedResponse is the exact HTTP response produced the first time a
// command ran under an idempotency key.
type SavedResponse struct {
	StatusCode int
	Headers    []HeaderPair
	Body       []byte
}

func (r SavedResponse) Clone() SavedResponse {
	headers := make([]HeaderPair, 0, len(r.Headers))
	for _, header := range r.Headers {
		headers = append(headers, HeaderPair{
			Name:  header.Name,
			Value: append([]byte(nil), header.Value...),
		})
	}
	return SavedResponse{
		StatusCode: r.StatusCode,
		Headers:    headers,
		Body:       append([]byte(nil), r.Body...),
	}
}

// IdempotencyRecord is keyed by (OwnerID, Key). A nil Response means the
// key is claimed and the command is still in flight.
type IdempotencyRecord struct {
	OwnerID   string
	Key       string
	CreatedAt time.Time
	Response  *SavedResponse
}

func (r IdempotencyRecord) Completed() bool {
	return r.Response != nil
}

func (r IdempotencyRecord) ExpiredAt(now time.Time, ttl time.Duration) bool {
	return r.CreatedAt.Before(now.Add(-ttl))
}
