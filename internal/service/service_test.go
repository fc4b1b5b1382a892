package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bloodbank/m/domain"
	"bloodbank/m/internal/allocator"
	"bloodbank/m/internal/forecast"
	"bloodbank/m/internal/store"
	"bloodbank/m/internal/testutil"
)

func newTestService(t *testing.T, s store.Store) *Service {
	t.Helper()
	return New(s, allocator.New(s, zap.NewNop()), zap.NewNop(), Options{
		Now:   testutil.FixedClock("2024-03-10"),
		NewID: testutil.SequentialIDs("tr"),
	})
}

func newSQLiteService(t *testing.T) (*Service, store.Store) {
	t.Helper()
	s := store.NewSQLStore(testutil.NewSQLiteDB(t))
	return newTestService(t, s), s
}

func TestEndToEndTransfusion(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSQLiteService(t)

	_, err := svc.RegisterDonor(ctx, DonorInput{ID: "D1", Name: "Usman", BloodType: "A+"})
	require.NoError(t, err)
	batch, err := svc.RecordDonation(ctx, DonationInput{DonorID: "D1", Units: 10, Date: "2024-03-01"})
	require.NoError(t, err)
	assert.Equal(t, domain.InventoryBatch{BloodType: domain.APos, DonationDate: "2024-03-01", Units: 10}, batch)

	recipient, err := svc.RegisterRecipient(ctx, RecipientInput{ID: "R1", Name: "Ali", BloodType: "A+", Units: 4})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-10", recipient.RequestDate)
	assert.Equal(t, domain.RecipientPending, recipient.Status)

	transfusion, err := svc.ProcessTransfusion(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, "tr-1", transfusion.ID)
	assert.Equal(t, domain.APos, transfusion.DonorBloodType)
	assert.Equal(t, []domain.Allocation{{DonationDate: "2024-03-01", Units: 4}}, transfusion.Items)

	inventory, err := svc.Inventory(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.InventoryBatch{{BloodType: domain.APos, DonationDate: "2024-03-01", Units: 6}}, inventory)

	got, err := svc.GetRecipient(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, domain.RecipientFulfilled, got.Status)

	history, err := svc.ListTransfusions(ctx, "R1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, transfusion.Items, history[0].Items)
}

func TestFulfilledRecipientIsNotReprocessed(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSQLiteService(t)
	_, err := svc.ImportBatches(ctx, []domain.ImportRow{{BloodType: domain.ONeg, DonationDate: "2024-01-01", Units: 10}})
	require.NoError(t, err)
	_, err = svc.RegisterRecipient(ctx, RecipientInput{ID: "R1", Name: "Ali", BloodType: "B+", Units: 3})
	require.NoError(t, err)

	_, err = svc.ProcessTransfusion(ctx, "R1")
	require.NoError(t, err)
	_, err = svc.ProcessTransfusion(ctx, "R1")
	assert.ErrorIs(t, err, domain.ErrAlreadyFulfilled)

	inventory, err := svc.Inventory(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), inventory[0].Units)
}

func TestTransfusionPrefersCanonicalDonorOrder(t *testing.T) {
	ctx := context.Background()
	svc, s := newSQLiteService(t)
	require.NoError(t, s.UpsertBatch(ctx, domain.APos, "2024-01-01", 10))
	require.NoError(t, s.UpsertBatch(ctx, domain.OPos, "2024-02-01", 5))
	require.NoError(t, s.UpsertBatch(ctx, domain.ONeg, "2024-01-15", 2))
	_, err := svc.RegisterRecipient(ctx, RecipientInput{ID: "R1", Name: "Ali", BloodType: "AB+", Units: 5})
	require.NoError(t, err)

	transfusion, err := svc.ProcessTransfusion(ctx, "R1")

	require.NoError(t, err)
	// O- has too little, O+ is next in table order.
	assert.Equal(t, domain.OPos, transfusion.DonorBloodType)
}

func TestFailedTransfusionLeavesEveryTypeUntouched(t *testing.T) {
	ctx := context.Background()
	svc, s := newSQLiteService(t)
	rows := []domain.ImportRow{
		{BloodType: domain.ONeg, DonationDate: "2024-01-01", Units: 2},
		{BloodType: domain.ANeg, DonationDate: "2024-01-02", Units: 3},
		{BloodType: domain.ABNeg, DonationDate: "2024-01-03", Units: 1},
	}
	_, err := svc.ImportBatches(ctx, rows)
	require.NoError(t, err)
	before, err := s.ListAllBatches(ctx)
	require.NoError(t, err)
	_, err = svc.RegisterRecipient(ctx, RecipientInput{ID: "R1", Name: "Ali", BloodType: "AB-", Units: 4})
	require.NoError(t, err)

	_, err = svc.ProcessTransfusion(ctx, "R1")

	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	after, err := s.ListAllBatches(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	r, err := svc.GetRecipient(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, domain.RecipientPending, r.Status)
}

func TestProcessUnknownRecipient(t *testing.T) {
	svc := newTestService(t, store.NewMemoryStore())
	_, err := svc.ProcessTransfusion(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordDonationValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, store.NewMemoryStore())
	_, err := svc.RegisterDonor(ctx, DonorInput{ID: "D1", Name: "Usman", BloodType: "o-"})
	require.NoError(t, err)

	tests := []struct {
		name string
		in   DonationInput
		want error
	}{
		{"zero units", DonationInput{DonorID: "D1", Units: 0, Date: "2024-03-01"}, domain.ErrValidation},
		{"bad date", DonationInput{DonorID: "D1", Units: 1, Date: "03/01/2024"}, domain.ErrValidation},
		{"unknown donor", DonationInput{DonorID: "D9", Units: 1, Date: "2024-03-01"}, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RecordDonation(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	inventory, err := svc.Inventory(ctx)
	require.NoError(t, err)
	assert.Empty(t, inventory)
}

func TestDonationsMergeIntoOneBatch(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSQLiteService(t)
	_, err := svc.RegisterDonor(ctx, DonorInput{ID: "D1", Name: "Usman", BloodType: "B-"})
	require.NoError(t, err)
	_, err = svc.RegisterDonor(ctx, DonorInput{ID: "D2", Name: "Hina", BloodType: "B-"})
	require.NoError(t, err)

	_, err = svc.RecordDonation(ctx, DonationInput{DonorID: "D1", Units: 2, Date: "2024-03-01"})
	require.NoError(t, err)
	batch, err := svc.RecordDonation(ctx, DonationInput{DonorID: "D2", Units: 5, Date: "2024-03-01"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), batch.Units)

	donor, err := svc.GetDonor(ctx, "D2")
	require.NoError(t, err)
	require.NotNil(t, donor.LastDonation)
	assert.Equal(t, "2024-03-01", *donor.LastDonation)
}

func TestRegistrationValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, store.NewMemoryStore())

	_, err := svc.RegisterDonor(ctx, DonorInput{ID: "D1", Name: "", BloodType: "A+"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.RegisterDonor(ctx, DonorInput{ID: "D1", Name: "X", BloodType: "Q"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.RegisterRecipient(ctx, RecipientInput{ID: "R1", Name: "Y", BloodType: "A+", Units: 0})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.RegisterDonor(ctx, DonorInput{ID: "D1", Name: "X", BloodType: "A+"})
	require.NoError(t, err)
	_, err = svc.RegisterDonor(ctx, DonorInput{ID: "D1", Name: "X", BloodType: "A+"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestImportRejectsWholeBatchOnBadRow(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, store.NewMemoryStore())

	_, err := svc.ImportBatches(ctx, []domain.ImportRow{
		{Line: 2, BloodType: domain.APos, DonationDate: "2024-01-01", Units: 3},
		{Line: 3, BloodType: domain.APos, DonationDate: "2024-13-01", Units: 3},
	})

	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "row 3")
	inventory, err := svc.Inventory(ctx)
	require.NoError(t, err)
	assert.Empty(t, inventory)
}

func TestImportMergesPaddedDateIntoExistingBatch(t *testing.T) {
	ctx := context.Background()
	svc, s := newSQLiteService(t)
	require.NoError(t, s.UpsertBatch(ctx, domain.APos, "2024-03-01", 1))

	rows := []domain.ImportRow{{Line: 2, BloodType: domain.APos, DonationDate: " 2024-03-01 ", Units: 2}}
	n, err := svc.ImportBatches(ctx, rows)

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, " 2024-03-01 ", rows[0].DonationDate)
	inventory, err := svc.Inventory(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.InventoryBatch{{BloodType: domain.APos, DonationDate: "2024-03-01", Units: 3}}, inventory)
}

func TestStockSummaryLevels(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, store.NewMemoryStore())
	_, err := svc.ImportBatches(ctx, []domain.ImportRow{
		{BloodType: domain.ONeg, DonationDate: "2024-01-01", Units: 6},
		{BloodType: domain.ONeg, DonationDate: "2024-01-02", Units: 4},
		{BloodType: domain.BPos, DonationDate: "2024-01-01", Units: 5},
		{BloodType: domain.ABPos, DonationDate: "2024-01-01", Units: 4},
	})
	require.NoError(t, err)

	summary, err := svc.StockSummary(ctx)

	require.NoError(t, err)
	require.Len(t, summary, 8)
	byType := map[domain.BloodType]domain.StockTotal{}
	for _, total := range summary {
		byType[total.BloodType] = total
	}
	assert.Equal(t, domain.StockTotal{BloodType: domain.ONeg, Units: 10, Level: domain.StockHigh}, byType[domain.ONeg])
	assert.Equal(t, domain.StockMedium, byType[domain.BPos].Level)
	assert.Equal(t, domain.StockLow, byType[domain.ABPos].Level)
	assert.Equal(t, domain.StockTotal{BloodType: domain.ANeg, Units: 0, Level: domain.StockLow}, byType[domain.ANeg])
}

func TestAllocateDirect(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, store.NewMemoryStore())
	_, err := svc.ImportBatches(ctx, []domain.ImportRow{{BloodType: domain.ONeg, DonationDate: "2024-01-01", Units: 2}})
	require.NoError(t, err)

	allocations, err := svc.Allocate(ctx, AllocationInput{BloodType: "o-", Units: 0})
	require.NoError(t, err)
	assert.Empty(t, allocations)

	_, err = svc.Allocate(ctx, AllocationInput{BloodType: "o-", Units: 3})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	allocations, err = svc.Allocate(ctx, AllocationInput{BloodType: "o-", Units: 2})
	require.NoError(t, err)
	assert.Equal(t, []domain.Allocation{{DonationDate: "2024-01-01", Units: 2}}, allocations)
}

func TestForecastUsesRecipientHistory(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	svc := newTestService(t, s)
	require.NoError(t, s.CreateRecipient(ctx, domain.Recipient{ID: "R1", Name: "A", BloodType: domain.APos, RequiredUnits: 4, RequestDate: "2024-03-01"}))
	require.NoError(t, s.CreateRecipient(ctx, domain.Recipient{ID: "R2", Name: "B", BloodType: domain.ONeg, RequiredUnits: 2, RequestDate: "2024-03-08"}))
	require.NoError(t, s.CreateRecipient(ctx, domain.Recipient{ID: "R3", Name: "C", BloodType: domain.ONeg, RequiredUnits: 4, RequestDate: "2024-03-10"}))

	predictions, err := svc.Forecast(ctx, 30)

	require.NoError(t, err)
	require.Len(t, predictions, 8)
	byType := map[domain.BloodType]forecast.Prediction{}
	for _, p := range predictions {
		byType[p.BloodType] = p
	}
	assert.Equal(t, forecast.ConstantMean(4), byType[domain.APos].Model)
	assert.Equal(t, forecast.KindLinear, byType[domain.ONeg].Model.Kind)
	// Two points: (-2, 2) and (0, 4): slope 1, intercept 4.
	assert.InDelta(t, 34, byType[domain.ONeg].Units, 1e-9)

	_, err = svc.Forecast(ctx, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
