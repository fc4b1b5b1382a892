// Package allocator deducts blood units from the batch ledger, oldest
// donation first, all-or-nothing.
package allocator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"bloodbank/m/domain"
	"bloodbank/m/internal/store"
)

// CommitFunc runs inside the allocation transaction after the stock has been
// deducted. Returning an error rolls the deduction back.
type CommitFunc func(ctx context.Context, tx store.Tx, donor domain.BloodType, allocations []domain.Allocation) error

// Allocator serialises allocation per blood type. Every read, plan and write
// for a type happens while its lock is held and inside one transaction.
type Allocator struct {
	store store.Store
	log   *zap.Logger
	locks []sync.Mutex
}

func New(s store.Store, log *zap.Logger) *Allocator {
	return &Allocator{store: s, log: log, locks: make([]sync.Mutex, len(domain.BloodTypes))}
}

// Allocate takes needed units of bt from the oldest batches. On
// insufficient stock nothing is written.
func (a *Allocator) Allocate(ctx context.Context, bt domain.BloodType, needed int64) ([]domain.Allocation, error) {
	_, allocations, err := a.AllocateFirst(ctx, []domain.BloodType{bt}, needed, nil)
	return allocations, err
}

// AllocateFirst tries candidates in the given order and commits the first
// one whose stock covers needed. onCommit may be nil.
func (a *Allocator) AllocateFirst(ctx context.Context, candidates []domain.BloodType, needed int64, onCommit CommitFunc) (domain.BloodType, []domain.Allocation, error) {
	if needed < 0 {
		return "", nil, domain.NewValidationError("units", "must not be negative")
	}
	if len(candidates) == 0 {
		return "", nil, domain.NewValidationError("blood_type", "no candidate blood types")
	}
	for _, bt := range candidates {
		if !bt.Valid() {
			return "", nil, domain.NewValidationError("blood_type", fmt.Sprintf("unknown blood type %q", bt))
		}
	}
	if needed == 0 {
		return candidates[0], []domain.Allocation{}, nil
	}

	unlock := a.lock(candidates)
	defer unlock()

	var (
		chosen      domain.BloodType
		allocations []domain.Allocation
	)
	err := a.store.InTx(ctx, func(tx store.Tx) error {
		best := &domain.InsufficientStockError{BloodType: candidates[0], Needed: needed}
		for _, bt := range candidates {
			batches, err := tx.ListBatches(ctx, bt)
			if err != nil {
				return err
			}
			plan, err := Plan(bt, batches, needed)
			var short *domain.InsufficientStockError
			if errors.As(err, &short) {
				a.log.Debug("candidate cannot cover request",
					zap.String("blood_type", bt.String()),
					zap.Int64("needed", needed),
					zap.Int64("available", short.Available))
				if short.Available > best.Available {
					best = short
				}
				continue
			}
			if err != nil {
				return err
			}

			if err := commit(ctx, tx, bt, plan); err != nil {
				return err
			}
			if onCommit != nil {
				if err := onCommit(ctx, tx, bt, plan); err != nil {
					return err
				}
			}
			chosen, allocations = bt, plan
			return nil
		}
		return best
	})
	if err != nil {
		return "", nil, err
	}

	a.log.Info("allocated stock",
		zap.String("blood_type", chosen.String()),
		zap.Int64("units", needed),
		zap.Int("batches", len(allocations)))
	return chosen, allocations, nil
}

// lock acquires the mutex of every distinct candidate in canonical order so
// that concurrent multi-type callers cannot deadlock.
func (a *Allocator) lock(candidates []domain.BloodType) func() {
	seen := make(map[int]bool, len(candidates))
	var idx []int
	for _, bt := range candidates {
		i := bt.Index()
		if !seen[i] {
			seen[i] = true
			idx = append(idx, i)
		}
	}
	sort.Ints(idx)
	for _, i := range idx {
		a.locks[i].Lock()
	}
	return func() {
		for j := len(idx) - 1; j >= 0; j-- {
			a.locks[idx[j]].Unlock()
		}
	}
}

// commit applies the plan as relative deductions so that units added to a
// batch after it was listed survive the write.
func commit(ctx context.Context, tx store.Tx, bt domain.BloodType, plan []domain.Allocation) error {
	for _, alloc := range plan {
		if err := tx.DeductBatch(ctx, bt, alloc.DonationDate, alloc.Units); err != nil {
			return fmt.Errorf("commit allocation: %w", err)
		}
	}
	return nil
}
