package usage

//go:generate mockgen -destination=./service_mock_test.go -package=usage -source=service.go Service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service is the business logic for the usage ledger.
type Service interface {
	// Record stamps and stores a record.
	Record(ctx context.Context, record *Record) error
	// Summary aggregates usage since the given time.
	Summary(ctx context.Context, since time.Time) ([]*Summary, error)
}

// service is the concrete implementation of the Service interface.
type service struct {
	repo Repository
	now  func() time.Time
}

// NewService is the constructor for the service.
func NewService(repo Repository) Service {
	return &service{
		repo: repo,
		now:  time.Now,
	}
}

// Record implements the Service interface.
func (s *service) Record(ctx context.Context, record *Record) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now().UTC()
	}

	if err := s.repo.Insert(ctx, record); err != nil {
		return fmt.Errorf("could not record usage: %w", err)
	}
	return nil
}

// Summary implements the Service interface.
func (s *service) Summary(ctx context.Context, since time.Time) ([]*Summary, error) {
	if since.After(s.now()) {
		return nil, fmt.Errorf("since is in the future")
	}
	return s.repo.Summarize(ctx, since)
}
