// Package service implements the blood bank use cases on top of the store
// and the allocator. Inputs arrive as plain structs and are validated here
// before anything touches storage.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bloodbank/m/domain"
	"bloodbank/m/internal/allocator"
	"bloodbank/m/internal/store"
)

// Options tunes a Service. Zero values fall back to defaults.
type Options struct {
	StockHigh   int64
	StockMedium int64
	Now         func() time.Time
	NewID       func() string
}

type Service struct {
	store       store.Store
	alloc       *allocator.Allocator
	log         *zap.Logger
	stockHigh   int64
	stockMedium int64
	now         func() time.Time
	newID       func() string
}

func New(s store.Store, alloc *allocator.Allocator, log *zap.Logger, opts Options) *Service {
	svc := &Service{
		store:       s,
		alloc:       alloc,
		log:         log,
		stockHigh:   opts.StockHigh,
		stockMedium: opts.StockMedium,
		now:         opts.Now,
		newID:       opts.NewID,
	}
	if svc.stockHigh <= 0 {
		svc.stockHigh = 10
	}
	if svc.stockMedium <= 0 {
		svc.stockMedium = 5
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.newID == nil {
		svc.newID = uuid.NewString
	}
	return svc
}

func (s *Service) today() string {
	return domain.FormatDate(s.now())
}

// Allocate deducts units of one blood type directly, without a recipient.
func (s *Service) Allocate(ctx context.Context, in AllocationInput) ([]domain.Allocation, error) {
	bt, err := in.validate()
	if err != nil {
		return nil, err
	}
	return s.alloc.Allocate(ctx, bt, in.Units)
}
