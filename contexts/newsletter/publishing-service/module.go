package publishingservice

import (
	"time"

	httpadapter "letterbox/contexts/newsletter/publishing-service/adapters/http"
	"letterbox/contexts/newsletter/publishing-service/adapters/memory"
	"letterbox/contexts/newsletter/publishing-service/application/commands"
	"letterbox/contexts/newsletter/publishing-service/application/idempotency"
	"letterbox/contexts/newsletter/publishing-service/application/queries"
	"letterbox/contexts/newsletter/publishing-service/application/workers"
	"letterbox/contexts/newsletter/publishing-service/domain/entities"
	"letterbox/contexts/newsletter/publishing-service/ports"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type Module struct {
	Handler httpadapter.Handler
	Worker  workers.IssueDeliveryWorker
	Store   *memory.Store
}

type Dependencies struct {
	Records      ports.IdempotencyRepository
	Transactions ports.UnitOfWork
	Issues       ports.IssueRepository
	// IssueReader serves worker reads; it defaults to Issues.
	IssueReader    ports.IssueReader
	Deliveries     ports.DeliveryQueue
	Subscribers    ports.SubscriberDirectory
	Email          ports.EmailSender
	Clock          clockwork.Clock
	IDGenerator    ports.IDGenerator
	IdempotencyTTL time.Duration
	Worker         workers.WorkerConfig
	Logger         *zap.Logger
}

func NewModule(deps Dependencies) Module {
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	reader := deps.IssueReader
	if reader == nil {
		reader = deps.Issues
	}

	store := idempotency.Store{
		Records:      deps.Records,
		Transactions: deps.Transactions,
		Clock:        clock,
		TTL:          deps.IdempotencyTTL,
		Logger:       deps.Logger,
	}
	publishIssue := commands.PublishIssueUseCase{
		Idempotency: store,
		Issues:      deps.Issues,
		Deliveries:  deps.Deliveries,
		Clock:       clock,
		IDGenerator: deps.IDGenerator,
		Logger:      deps.Logger,
	}
	getIssue := queries.GetIssueUseCase{
		Issues:     deps.Issues,
		Deliveries: deps.Deliveries,
		Logger:     deps.Logger,
	}

	return Module{
		Handler: httpadapter.Handler{
			PublishIssue: publishIssue,
			GetIssue:     getIssue,
			Logger:       deps.Logger,
		},
		Worker: workers.IssueDeliveryWorker{
			Queue:       deps.Deliveries,
			Issues:      reader,
			Subscribers: deps.Subscribers,
			Email:       deps.Email,
			Clock:       clock,
			Config:      deps.Worker,
			Logger:      deps.Logger,
		},
	}
}

func NewInMemoryModule(
	subscribers []entities.Subscriber,
	email ports.EmailSender,
	clock clockwork.Clock,
	logger *zap.Logger,
) Module {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	store := memory.NewStore(clock, subscribers)
	workerConfig := workers.DefaultWorkerConfig()
	workerConfig.BaseURL = "http://localhost:8080"
	module := NewModule(Dependencies{
		Records:        store,
		Transactions:   store,
		Issues:         store,
		Deliveries:     store,
		Subscribers:    store,
		Email:          email,
		Clock:          clock,
		IDGenerator:    store,
		IdempotencyTTL: idempotency.DefaultTTL,
		Worker:         workerConfig,
		Logger:         logger,
	})
	module.Store = store
	return module
}
