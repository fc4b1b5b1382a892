package service

import (
	"context"

	"go.uber.org/zap"

	"bloodbank/m/domain"
	"bloodbank/m/internal/store"
)

func (s *Service) RegisterDonor(ctx context.Context, in DonorInput) (domain.Donor, error) {
	donor, err := in.validate()
	if err != nil {
		return domain.Donor{}, err
	}
	if err := s.store.CreateDonor(ctx, donor); err != nil {
		return domain.Donor{}, err
	}
	s.log.Info("registered donor", zap.String("donor_id", donor.ID), zap.String("blood_type", donor.BloodType.String()))
	return donor, nil
}

func (s *Service) GetDonor(ctx context.Context, id string) (domain.Donor, error) {
	return s.store.GetDonor(ctx, id)
}

// RecordDonation merges units into the donor's batch for the given day and
// returns the batch as it stands afterwards.
func (s *Service) RecordDonation(ctx context.Context, in DonationInput) (domain.InventoryBatch, error) {
	date, err := in.validate()
	if err != nil {
		return domain.InventoryBatch{}, err
	}

	var batch domain.InventoryBatch
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		donor, err := tx.GetDonor(ctx, in.DonorID)
		if err != nil {
			return err
		}
		if err := tx.UpsertBatch(ctx, donor.BloodType, date, in.Units); err != nil {
			return err
		}
		if err := tx.SetLastDonation(ctx, donor.ID, date); err != nil {
			return err
		}
		batches, err := tx.ListBatches(ctx, donor.BloodType)
		if err != nil {
			return err
		}
		for _, b := range batches {
			if b.DonationDate == date {
				batch = b
			}
		}
		return nil
	})
	if err != nil {
		return domain.InventoryBatch{}, err
	}
	s.log.Info("recorded donation",
		zap.String("donor_id", in.DonorID),
		zap.String("blood_type", batch.BloodType.String()),
		zap.String("date", date),
		zap.Int64("units", in.Units))
	return batch, nil
}

// RegisterRecipient stores a pending request dated today.
func (s *Service) RegisterRecipient(ctx context.Context, in RecipientInput) (domain.Recipient, error) {
	recipient, err := in.validate()
	if err != nil {
		return domain.Recipient{}, err
	}
	recipient.RequestDate = s.today()
	if err := s.store.CreateRecipient(ctx, recipient); err != nil {
		return domain.Recipient{}, err
	}
	s.log.Info("registered recipient",
		zap.String("recipient_id", recipient.ID),
		zap.String("blood_type", recipient.BloodType.String()),
		zap.Int64("units", recipient.RequiredUnits))
	return recipient, nil
}

func (s *Service) GetRecipient(ctx context.Context, id string) (domain.Recipient, error) {
	return s.store.GetRecipient(ctx, id)
}

func (s *Service) ListRecipients(ctx context.Context) ([]domain.Recipient, error) {
	return s.store.ListRecipients(ctx)
}

func (s *Service) ListTransfusions(ctx context.Context, recipientID string) ([]domain.Transfusion, error) {
	if _, err := s.store.GetRecipient(ctx, recipientID); err != nil {
		return nil, err
	}
	return s.store.ListTransfusions(ctx, recipientID)
}
