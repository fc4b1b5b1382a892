// Package store persists the batch ledger, donors, recipients and
// transfusions. The allocator only depends on the Ledger contract.
package store

import (
	"context"

	"bloodbank/m/domain"
)

// Ledger is the per-(blood type, donation date) stock book.
type Ledger interface {
	// UpsertBatch adds delta to the batch, creating it when missing.
	UpsertBatch(ctx context.Context, bt domain.BloodType, date string, delta int64) error
	RemoveBatch(ctx context.Context, bt domain.BloodType, date string) error
	SetBatchUnits(ctx context.Context, bt domain.BloodType, date string, units int64) error
	// DeductBatch subtracts units from the batch as it stands at write time
	// and drops it when it reaches zero. A batch holding fewer than units
	// is left alone and ErrInsufficientStock is returned.
	DeductBatch(ctx context.Context, bt domain.BloodType, date string, units int64) error
	// ListBatches returns the batches of bt in no particular order.
	ListBatches(ctx context.Context, bt domain.BloodType) ([]domain.InventoryBatch, error)
	ListAllBatches(ctx context.Context) ([]domain.InventoryBatch, error)
}

// Registry holds donors, recipients and transfusion records.
type Registry interface {
	CreateDonor(ctx context.Context, donor domain.Donor) error
	GetDonor(ctx context.Context, id string) (domain.Donor, error)
	SetLastDonation(ctx context.Context, donorID, date string) error

	CreateRecipient(ctx context.Context, recipient domain.Recipient) error
	GetRecipient(ctx context.Context, id string) (domain.Recipient, error)
	ListRecipients(ctx context.Context) ([]domain.Recipient, error)
	MarkFulfilled(ctx context.Context, recipientID, at string) error

	CreateTransfusion(ctx context.Context, t domain.Transfusion) error
	ListTransfusions(ctx context.Context, recipientID string) ([]domain.Transfusion, error)
}

// Tx is the view handed to a transaction callback.
type Tx interface {
	Ledger
	Registry
}

// Store is a Tx bound to autocommit plus the ability to open a transaction.
// When fn returns an error nothing it wrote is kept.
type Store interface {
	Tx
	InTx(ctx context.Context, fn func(tx Tx) error) error
}
