package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bloodbank/m/domain"
	"bloodbank/m/internal/store"
)

// ProcessTransfusion satisfies a pending recipient from the first compatible
// donor type with enough stock. Deducting the stock, marking the recipient
// fulfilled and recording the transfusion commit together or not at all.
func (s *Service) ProcessTransfusion(ctx context.Context, recipientID string) (domain.Transfusion, error) {
	recipient, err := s.store.GetRecipient(ctx, recipientID)
	if err != nil {
		return domain.Transfusion{}, err
	}
	if recipient.Status == domain.RecipientFulfilled {
		return domain.Transfusion{}, fmt.Errorf("recipient %s: %w", recipientID, domain.ErrAlreadyFulfilled)
	}

	var transfusion domain.Transfusion
	record := func(ctx context.Context, tx store.Tx, donor domain.BloodType, allocations []domain.Allocation) error {
		now := s.now().UTC().Format(time.RFC3339)
		if err := tx.MarkFulfilled(ctx, recipient.ID, now); err != nil {
			return err
		}
		transfusion = domain.Transfusion{
			ID:             s.newID(),
			RecipientID:    recipient.ID,
			DonorBloodType: donor,
			Units:          recipient.RequiredUnits,
			CreatedAt:      now,
			Items:          allocations,
		}
		return tx.CreateTransfusion(ctx, transfusion)
	}

	candidates := domain.DonorsFor(recipient.BloodType)
	if _, _, err := s.alloc.AllocateFirst(ctx, candidates, recipient.RequiredUnits, record); err != nil {
		s.log.Warn("transfusion failed",
			zap.String("recipient_id", recipient.ID),
			zap.String("blood_type", recipient.BloodType.String()),
			zap.Int64("units", recipient.RequiredUnits),
			zap.Error(err))
		return domain.Transfusion{}, fmt.Errorf("recipient %s: %w", recipient.ID, err)
	}

	s.log.Info("transfusion processed",
		zap.String("recipient_id", recipient.ID),
		zap.String("transfusion_id", transfusion.ID),
		zap.String("donor_blood_type", transfusion.DonorBloodType.String()),
		zap.Int64("units", transfusion.Units))
	return transfusion, nil
}
