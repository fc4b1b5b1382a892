package service

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"bloodbank/m/domain"
	"bloodbank/m/internal/forecast"
	"bloodbank/m/internal/store"
)

// Inventory returns every batch, grouped by blood type in canonical order and
// oldest first within a type.
func (s *Service) Inventory(ctx context.Context) ([]domain.InventoryBatch, error) {
	batches, err := s.store.ListAllBatches(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(batches, func(i, j int) bool {
		a, b := batches[i], batches[j]
		if a.BloodType != b.BloodType {
			return a.BloodType.Index() < b.BloodType.Index()
		}
		return a.DonationDate < b.DonationDate
	})
	return batches, nil
}

// StockSummary totals every blood type, including those with no stock.
func (s *Service) StockSummary(ctx context.Context) ([]domain.StockTotal, error) {
	batches, err := s.store.ListAllBatches(ctx)
	if err != nil {
		return nil, err
	}
	totals := make(map[domain.BloodType]int64)
	for _, b := range batches {
		totals[b.BloodType] += b.Units
	}
	summary := make([]domain.StockTotal, 0, len(domain.BloodTypes))
	for _, bt := range domain.BloodTypes {
		summary = append(summary, domain.StockTotal{BloodType: bt, Units: totals[bt], Level: s.level(totals[bt])})
	}
	return summary, nil
}

func (s *Service) level(units int64) domain.StockLevel {
	switch {
	case units >= s.stockHigh:
		return domain.StockHigh
	case units >= s.stockMedium:
		return domain.StockMedium
	default:
		return domain.StockLow
	}
}

// ImportBatches merges rows into the ledger with the donation upsert rule.
// Rows are validated up front and written in one transaction.
func (s *Service) ImportBatches(ctx context.Context, rows []domain.ImportRow) (int, error) {
	clean := make([]domain.ImportRow, len(rows))
	for i, row := range rows {
		field := fmt.Sprintf("row %d", lineOf(row, i))
		if !row.BloodType.Valid() {
			return 0, domain.NewValidationError(field, fmt.Sprintf("unknown blood type %q", row.BloodType))
		}
		date, err := domain.ParseDate(field, row.DonationDate)
		if err != nil {
			return 0, err
		}
		if row.Units <= 0 {
			return 0, domain.NewValidationError(field, "units must be positive")
		}
		row.DonationDate = date
		clean[i] = row
	}

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		for _, row := range clean {
			if err := tx.UpsertBatch(ctx, row.BloodType, row.DonationDate, row.Units); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("imported inventory rows", zap.Int("rows", len(rows)))
	return len(rows), nil
}

func lineOf(row domain.ImportRow, i int) int {
	if row.Line > 0 {
		return row.Line
	}
	return i + 1
}

// Forecast trains per-type demand models on recipient history and evaluates
// them horizonDays ahead.
func (s *Service) Forecast(ctx context.Context, horizonDays int) ([]forecast.Prediction, error) {
	if horizonDays <= 0 {
		return nil, domain.NewValidationError("days", "must be a positive integer")
	}
	recipients, err := s.store.ListRecipients(ctx)
	if err != nil {
		return nil, err
	}
	history := make([]forecast.Observation, 0, len(recipients))
	for _, r := range recipients {
		history = append(history, forecast.Observation{BloodType: r.BloodType, RequestDate: r.RequestDate, Units: r.RequiredUnits})
	}
	models := forecast.Train(history, s.now())
	return forecast.Forecast(models, horizonDays), nil
}
