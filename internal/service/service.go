package service

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/libtrack/borrowing-service/internal/checkout"
	"github.com/libtrack/borrowing-service/internal/repository"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go -package=mocks

var _ CheckoutProvider = (*checkout.Client)(nil)

// CheckoutProvider is the external checkout-session collaborator:
// create a session for an amount, retrieve its remote status.
type CheckoutProvider interface {
	CreateSession(ctx context.Context, itemName string, amountCents int64) (checkout.Session, error)
	RetrieveSession(ctx context.Context, sessionID string) (string, error)
}

// Enqueuer publishes post-commit notification events.
type Enqueuer interface {
	Enqueue(topic string, v any) error
}

type Service struct {
	log      *zap.Logger
	repo     repository.Repository
	provider CheckoutProvider
	enqueuer Enqueuer
	nowFn    func() time.Time
}

func NewService(repo repository.Repository, provider CheckoutProvider, enqueuer Enqueuer, log *zap.Logger) *Service {
	return &Service{
		log:      log,
		repo:     repo,
		provider: provider,
		enqueuer: enqueuer,
		nowFn:    time.Now,
	}
}

// today truncates to a calendar date in UTC.
func (s *Service) today() time.Time {
	now := s.nowFn().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func cents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
