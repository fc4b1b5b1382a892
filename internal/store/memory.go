package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"bloodbank/m/domain"
)

type batchKey struct {
	bloodType domain.BloodType
	date      string
}

// MemoryStore keeps everything in maps. Transactions work on a copy that
// replaces the live state only when the callback succeeds.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(working); err != nil {
		return err
	}
	s.state = working
	return nil
}

func (s *MemoryStore) locked(fn func(st *memState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

func (s *MemoryStore) UpsertBatch(ctx context.Context, bt domain.BloodType, date string, delta int64) error {
	return s.locked(func(st *memState) error { return st.UpsertBatch(ctx, bt, date, delta) })
}

func (s *MemoryStore) RemoveBatch(ctx context.Context, bt domain.BloodType, date string) error {
	return s.locked(func(st *memState) error { return st.RemoveBatch(ctx, bt, date) })
}

func (s *MemoryStore) SetBatchUnits(ctx context.Context, bt domain.BloodType, date string, units int64) error {
	return s.locked(func(st *memState) error { return st.SetBatchUnits(ctx, bt, date, units) })
}

func (s *MemoryStore) DeductBatch(ctx context.Context, bt domain.BloodType, date string, units int64) error {
	return s.locked(func(st *memState) error { return st.DeductBatch(ctx, bt, date, units) })
}

func (s *MemoryStore) ListBatches(ctx context.Context, bt domain.BloodType) (batches []domain.InventoryBatch, err error) {
	err = s.locked(func(st *memState) error {
		batches, err = st.ListBatches(ctx, bt)
		return err
	})
	return batches, err
}

func (s *MemoryStore) ListAllBatches(ctx context.Context) (batches []domain.InventoryBatch, err error) {
	err = s.locked(func(st *memState) error {
		batches, err = st.ListAllBatches(ctx)
		return err
	})
	return batches, err
}

func (s *MemoryStore) CreateDonor(ctx context.Context, donor domain.Donor) error {
	return s.locked(func(st *memState) error { return st.CreateDonor(ctx, donor) })
}

func (s *MemoryStore) GetDonor(ctx context.Context, id string) (donor domain.Donor, err error) {
	err = s.locked(func(st *memState) error {
		donor, err = st.GetDonor(ctx, id)
		return err
	})
	return donor, err
}

func (s *MemoryStore) SetLastDonation(ctx context.Context, donorID, date string) error {
	return s.locked(func(st *memState) error { return st.SetLastDonation(ctx, donorID, date) })
}

func (s *MemoryStore) CreateRecipient(ctx context.Context, r domain.Recipient) error {
	return s.locked(func(st *memState) error { return st.CreateRecipient(ctx, r) })
}

func (s *MemoryStore) GetRecipient(ctx context.Context, id string) (r domain.Recipient, err error) {
	err = s.locked(func(st *memState) error {
		r, err = st.GetRecipient(ctx, id)
		return err
	})
	return r, err
}

func (s *MemoryStore) ListRecipients(ctx context.Context) (recipients []domain.Recipient, err error) {
	err = s.locked(func(st *memState) error {
		recipients, err = st.ListRecipients(ctx)
		return err
	})
	return recipients, err
}

func (s *MemoryStore) MarkFulfilled(ctx context.Context, recipientID, at string) error {
	return s.locked(func(st *memState) error { return st.MarkFulfilled(ctx, recipientID, at) })
}

func (s *MemoryStore) CreateTransfusion(ctx context.Context, t domain.Transfusion) error {
	return s.locked(func(st *memState) error { return st.CreateTransfusion(ctx, t) })
}

func (s *MemoryStore) ListTransfusions(ctx context.Context, recipientID string) (ts []domain.Transfusion, err error) {
	err = s.locked(func(st *memState) error {
		ts, err = st.ListTransfusions(ctx, recipientID)
		return err
	})
	return ts, err
}

// memState is the unsynchronised data set; it doubles as the Tx view.
type memState struct {
	batches      map[batchKey]int64
	donors       map[string]domain.Donor
	recipients   map[string]domain.Recipient
	transfusions []domain.Transfusion
}

func newMemState() *memState {
	return &memState{
		batches:    make(map[batchKey]int64),
		donors:     make(map[string]domain.Donor),
		recipients: make(map[string]domain.Recipient),
	}
}

func (st *memState) clone() *memState {
	out := newMemState()
	for k, v := range st.batches {
		out.batches[k] = v
	}
	for k, v := range st.donors {
		out.donors[k] = v
	}
	for k, v := range st.recipients {
		out.recipients[k] = v
	}
	out.transfusions = append(out.transfusions, st.transfusions...)
	return out
}

func (st *memState) UpsertBatch(_ context.Context, bt domain.BloodType, date string, delta int64) error {
	st.batches[batchKey{bt, date}] += delta
	return nil
}

func (st *memState) RemoveBatch(_ context.Context, bt domain.BloodType, date string) error {
	key := batchKey{bt, date}
	if _, ok := st.batches[key]; !ok {
		return fmt.Errorf("batch %s/%s: %w", bt, date, domain.ErrNotFound)
	}
	delete(st.batches, key)
	return nil
}

func (st *memState) SetBatchUnits(_ context.Context, bt domain.BloodType, date string, units int64) error {
	key := batchKey{bt, date}
	if _, ok := st.batches[key]; !ok {
		return fmt.Errorf("batch %s/%s: %w", bt, date, domain.ErrNotFound)
	}
	st.batches[key] = units
	return nil
}

func (st *memState) DeductBatch(_ context.Context, bt domain.BloodType, date string, units int64) error {
	key := batchKey{bt, date}
	have, ok := st.batches[key]
	if !ok || have < units {
		return fmt.Errorf("batch %s/%s: %w", bt, date, domain.ErrInsufficientStock)
	}
	if have == units {
		delete(st.batches, key)
		return nil
	}
	st.batches[key] = have - units
	return nil
}

func (st *memState) ListBatches(_ context.Context, bt domain.BloodType) ([]domain.InventoryBatch, error) {
	var batches []domain.InventoryBatch
	for k, units := range st.batches {
		if k.bloodType == bt {
			batches = append(batches, domain.InventoryBatch{BloodType: k.bloodType, DonationDate: k.date, Units: units})
		}
	}
	return batches, nil
}

func (st *memState) ListAllBatches(_ context.Context) ([]domain.InventoryBatch, error) {
	batches := make([]domain.InventoryBatch, 0, len(st.batches))
	for k, units := range st.batches {
		batches = append(batches, domain.InventoryBatch{BloodType: k.bloodType, DonationDate: k.date, Units: units})
	}
	sort.Slice(batches, func(i, j int) bool {
		if batches[i].BloodType != batches[j].BloodType {
			return batches[i].BloodType < batches[j].BloodType
		}
		return batches[i].DonationDate < batches[j].DonationDate
	})
	return batches, nil
}

func (st *memState) CreateDonor(_ context.Context, donor domain.Donor) error {
	if _, ok := st.donors[donor.ID]; ok {
		return fmt.Errorf("donor %s: %w", donor.ID, domain.ErrConflict)
	}
	st.donors[donor.ID] = donor
	return nil
}

func (st *memState) GetDonor(_ context.Context, id string) (domain.Donor, error) {
	donor, ok := st.donors[id]
	if !ok {
		return donor, fmt.Errorf("donor %s: %w", id, domain.ErrNotFound)
	}
	return donor, nil
}

func (st *memState) SetLastDonation(_ context.Context, donorID, date string) error {
	donor, ok := st.donors[donorID]
	if !ok {
		return fmt.Errorf("donor %s: %w", donorID, domain.ErrNotFound)
	}
	donor.LastDonation = &date
	st.donors[donorID] = donor
	return nil
}

func (st *memState) CreateRecipient(_ context.Context, r domain.Recipient) error {
	if _, ok := st.recipients[r.ID]; ok {
		return fmt.Errorf("recipient %s: %w", r.ID, domain.ErrConflict)
	}
	if r.Status == "" {
		r.Status = domain.RecipientPending
	}
	st.recipients[r.ID] = r
	return nil
}

func (st *memState) GetRecipient(_ context.Context, id string) (domain.Recipient, error) {
	r, ok := st.recipients[id]
	if !ok {
		return r, fmt.Errorf("recipient %s: %w", id, domain.ErrNotFound)
	}
	return r, nil
}

func (st *memState) ListRecipients(_ context.Context) ([]domain.Recipient, error) {
	recipients := make([]domain.Recipient, 0, len(st.recipients))
	for _, r := range st.recipients {
		recipients = append(recipients, r)
	}
	sort.Slice(recipients, func(i, j int) bool {
		if recipients[i].RequestDate != recipients[j].RequestDate {
			return recipients[i].RequestDate < recipients[j].RequestDate
		}
		return recipients[i].ID < recipients[j].ID
	})
	return recipients, nil
}

func (st *memState) MarkFulfilled(_ context.Context, recipientID, at string) error {
	r, ok := st.recipients[recipientID]
	if !ok || r.Status != domain.RecipientPending {
		return fmt.Errorf("recipient %s: %w", recipientID, domain.ErrAlreadyFulfilled)
	}
	r.Status = domain.RecipientFulfilled
	r.FulfilledAt = &at
	st.recipients[recipientID] = r
	return nil
}

func (st *memState) CreateTransfusion(_ context.Context, t domain.Transfusion) error {
	t.Items = append([]domain.Allocation(nil), t.Items...)
	st.transfusions = append(st.transfusions, t)
	return nil
}

func (st *memState) ListTransfusions(_ context.Context, recipientID string) ([]domain.Transfusion, error) {
	out := []domain.Transfusion{}
	for _, t := range st.transfusions {
		if t.RecipientID == recipientID {
			out = append(out, t)
		}
	}
	return out, nil
}
