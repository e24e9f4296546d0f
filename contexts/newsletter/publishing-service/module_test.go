package publishingservice_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	publishingservice "letterbox/contexts/newsletter/publishing-service"
	"letterbox/contexts/newsletter/publishing-service/domain/entities"
	domainerrors "letterbox/contexts/newsletter/publishing-service/domain/errors"
	httptransport "letterbox/contexts/newsletter/publishing-service/transport/http"
)

type outbox struct {
	mu   sync.Mutex
	sent []entities.Email
}

func (o *outbox) SendEmail(_ context.Context, email entities.Email) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, email)
	return nil
}

func (o *outbox) recipients() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.sent))
	for _, email := range o.sent {
		out = append(out, email.Recipient)
	}
	sort.Strings(out)
	return out
}

func subscribers() []entities.Subscriber {
	return []entities.Subscriber{
		{SubscriberID: "sub-a", Email: "a@x.com", Status: entities.SubscriberStatusConfirmed, SubscriptionToken: "tok-a"},
		{SubscriberID: "sub-b", Email: "b@x.com", Status: entities.SubscriberStatusConfirmed, SubscriptionToken: "tok-b"},
		{SubscriberID: "sub-c", Email: "c@x.com", Status: entities.SubscriberStatusPendingConfirmation, SubscriptionToken: "tok-c"},
	}
}

func issueRequest() httptransport.PublishIssueRequest {
	return httptransport.PublishIssueRequest{
		Title:       "Spring edition",
		TextContent: "Plain text body",
		HTMLContent: "<p>HTML body</p>",
	}
}

func TestPublishReplayReturnsIdenticalResponse(t *testing.T) {
	module := publishingservice.NewInMemoryModule(subscribers(), &outbox{}, nil, nil)
	ctx := context.Background()

	first, replayed, err := module.Handler.PublishIssueHandler(ctx, "owner-1", "publish-1", issueRequest())
	if err != nil {
		t.Fatalf("first publish failed: %v", err)
	}
	if replayed {
		t.Fatalf("expected first publish to be processed, not replayed")
	}
	second, replayed, err := module.Handler.PublishIssueHandler(ctx, "owner-1", "publish-1", issueRequest())
	if err != nil {
		t.Fatalf("replayed publish failed: %v", err)
	}
	if !replayed {
		t.Fatalf("expected second publish to be replayed")
	}
	if first.StatusCode != second.StatusCode || !bytes.Equal(first.Body, second.Body) {
		t.Fatalf("replay differs: %d %q vs %d %q", first.StatusCode, first.Body, second.StatusCode, second.Body)
	}
	if module.Store.IssueCount() != 1 {
		t.Fatalf("expected one stored issue, got %d", module.Store.IssueCount())
	}
	if got := len(module.Store.PendingDeliveries()); got != 2 {
		t.Fatalf("expected two queued deliveries, got %d", got)
	}

	var payload httptransport.PublishIssueResponse
	if err := json.Unmarshal(first.Body, &payload); err != nil {
		t.Fatalf("decode publish body: %v", err)
	}
	if !payload.Success || payload.IssueID == "" {
		t.Fatalf("unexpected publish payload: %+v", payload)
	}
}

func TestPublishIsScopedPerOwner(t *testing.T) {
	module := publishingservice.NewInMemoryModule(subscribers(), &outbox{}, nil, nil)
	ctx := context.Background()

	if _, _, err := module.Handler.PublishIssueHandler(ctx, "owner-1", "shared-key", issueRequest()); err != nil {
		t.Fatalf("owner-1 publish failed: %v", err)
	}
	_, replayed, err := module.Handler.PublishIssueHandler(ctx, "owner-2", "shared-key", issueRequest())
	if err != nil {
		t.Fatalf("owner-2 publish failed: %v", err)
	}
	if replayed {
		t.Fatalf("expected owner-2 to get a fresh publish")
	}
	if module.Store.IssueCount() != 2 {
		t.Fatalf("expected two issues, got %d", module.Store.IssueCount())
	}
}

func TestConcurrentPublishWithSameKeyProducesOneIssue(t *testing.T) {
	module := publishingservice.NewInMemoryModule(subscribers(), &outbox{}, nil, nil)
	ctx := context.Background()

	const callers = 6
	responses := make([]entities.SavedResponse, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			responses[i], _, errs[i] = module.Handler.PublishIssueHandler(ctx, "owner-1", "race-key", issueRequest())
		}(i)
	}
	wg.Wait()

	for i := range errs {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if responses[i].StatusCode != responses[0].StatusCode || !bytes.Equal(responses[i].Body, responses[0].Body) {
			t.Fatalf("caller %d saw a different response", i)
		}
	}
	if module.Store.IssueCount() != 1 {
		t.Fatalf("expected one issue, got %d", module.Store.IssueCount())
	}
	if got := len(module.Store.PendingDeliveries()); got != 2 {
		t.Fatalf("expected two queued deliveries, got %d", got)
	}
}

func TestPublishRejectsBadInputBeforeStorage(t *testing.T) {
	module := publishingservice.NewInMemoryModule(subscribers(), &outbox{}, nil, nil)
	ctx := context.Background()

	_, _, err := module.Handler.PublishIssueHandler(ctx, "owner-1", "", issueRequest())
	if !errors.Is(err, domainerrors.ErrIdempotencyKeyRequired) {
		t.Fatalf("expected missing key error, got %v", err)
	}
	_, _, err = module.Handler.PublishIssueHandler(ctx, "owner-1", strings.Repeat("k", 51), issueRequest())
	if !errors.Is(err, domainerrors.ErrInvalidIdempotencyKey) {
		t.Fatalf("expected invalid key error, got %v", err)
	}
	_, _, err = module.Handler.PublishIssueHandler(ctx, "owner-1", "ok-key", httptransport.PublishIssueRequest{Title: "only a title"})
	if !errors.Is(err, domainerrors.ErrInvalidIssueContent) {
		t.Fatalf("expected invalid content error, got %v", err)
	}
	_, _, err = module.Handler.PublishIssueHandler(ctx, "", "ok-key", issueRequest())
	if !errors.Is(err, domainerrors.ErrOwnerRequired) {
		t.Fatalf("expected owner required error, got %v", err)
	}
	if module.Store.IssueCount() != 0 {
		t.Fatalf("expected no stored issue, got %d", module.Store.IssueCount())
	}
}

func TestPublishFallsBackToBodyKey(t *testing.T) {
	module := publishingservice.NewInMemoryModule(subscribers(), &outbox{}, nil, nil)
	ctx := context.Background()

	req := issueRequest()
	req.IdempotencyKey = "body-key"
	if _, _, err := module.Handler.PublishIssueHandler(ctx, "owner-1", "", req); err != nil {
		t.Fatalf("publish with body key failed: %v", err)
	}
	_, replayed, err := module.Handler.PublishIssueHandler(ctx, "owner-1", "body-key", issueRequest())
	if err != nil {
		t.Fatalf("publish with header key failed: %v", err)
	}
	if !replayed {
		t.Fatalf("expected header key to replay the body key publish")
	}
}

func TestPublishThenDrainDeliversToConfirmedSubscribers(t *testing.T) {
	sender := &outbox{}
	module := publishingservice.NewInMemoryModule(subscribers(), sender, nil, nil)
	ctx := context.Background()

	response, _, err := module.Handler.PublishIssueHandler(ctx, "owner-1", "deliver-1", issueRequest())
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	var payload httptransport.PublishIssueResponse
	if err := json.Unmarshal(response.Body, &payload); err != nil {
		t.Fatalf("decode publish body: %v", err)
	}

	delivered, err := module.Worker.Drain(ctx)
	if err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if delivered != 2 {
		t.Fatalf("expected two delivery attempts, got %d", delivered)
	}
	got := sender.recipients()
	if len(got) != 2 || got[0] != "a@x.com" || got[1] != "b@x.com" {
		t.Fatalf("unexpected recipients: %v", got)
	}

	status, err := module.Handler.GetIssueHandler(ctx, payload.IssueID)
	if err != nil {
		t.Fatalf("get issue failed: %v", err)
	}
	if status.PendingDeliveries != 0 || status.Issue.Title != "Spring edition" {
		t.Fatalf("unexpected issue status: %+v", status)
	}

	if _, err := module.Handler.GetIssueHandler(ctx, "missing"); !errors.Is(err, domainerrors.ErrIssueNotFound) {
		t.Fatalf("expected issue not found, got %v", err)
	}
}
