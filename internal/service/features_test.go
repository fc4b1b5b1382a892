package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"testing"

	"github.com/cucumber/godog"
	"github.com/cucumber/godog/colors"
	"go.uber.org/zap"

	"bloodbank/m/domain"
	"bloodbank/m/internal/allocator"
	"bloodbank/m/internal/store"
	"bloodbank/m/internal/testutil"
)

var opts = godog.Options{
	Output:      colors.Colored(os.Stdout),
	Format:      "progress",
	Paths:       []string{"../../features"},
	Randomize:   0,
	Concurrency: 1,
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options:             &opts,
	}

	if suite.Run() != 0 {
		t.Fail()
	}
}

// bankContext holds one scenario's service and the outcome of its last step.
type bankContext struct {
	svc         *Service
	transfusion domain.Transfusion
	allocations []domain.Allocation
	err         error
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	bc := &bankContext{}

	ctx.Step(`^an empty blood bank on "([^"]*)"$`, bc.emptyBank)
	ctx.Step(`^donor "([^"]*)" with blood type "([^"]*)"$`, bc.donor)
	ctx.Step(`^donor "([^"]*)" donates (\d+) units on "([^"]*)"$`, bc.donates)
	ctx.Step(`^the inventory holds (\d+) units of "([^"]*)" donated on "([^"]*)"$`, bc.inventoryHolds)
	ctx.Step(`^recipient "([^"]*)" with blood type "([^"]*)" needs (\d+) units$`, bc.recipient)
	ctx.Step(`^recipient "([^"]*)" is processed$`, bc.process)
	ctx.Step(`^(\d+) units of "([^"]*)" are allocated$`, bc.allocate)
	ctx.Step(`^the transfusion uses "([^"]*)" blood$`, bc.transfusionUses)
	ctx.Step(`^the allocation is:$`, bc.allocationIs)
	ctx.Step(`^the inventory is:$`, bc.inventoryIs)
	ctx.Step(`^the request fails with insufficient stock$`, bc.failsWith(domain.ErrInsufficientStock))
	ctx.Step(`^the request fails as already fulfilled$`, bc.failsWith(domain.ErrAlreadyFulfilled))
}

func (bc *bankContext) emptyBank(today string) error {
	if _, err := domain.ParseDate("today", today); err != nil {
		return err
	}
	s := store.NewMemoryStore()
	bc.svc = New(s, allocator.New(s, zap.NewNop()), zap.NewNop(), Options{
		Now:   testutil.FixedClock(today),
		NewID: testutil.SequentialIDs("tr"),
	})
	bc.transfusion, bc.allocations, bc.err = domain.Transfusion{}, nil, nil
	return nil
}

func (bc *bankContext) donor(id, bt string) error {
	_, err := bc.svc.RegisterDonor(context.Background(), DonorInput{ID: id, Name: "donor " + id, BloodType: bt})
	return err
}

func (bc *bankContext) donates(id string, units int64, date string) error {
	_, err := bc.svc.RecordDonation(context.Background(), DonationInput{DonorID: id, Units: units, Date: date})
	return err
}

func (bc *bankContext) inventoryHolds(units int64, bt, date string) error {
	_, err := bc.svc.ImportBatches(context.Background(), []domain.ImportRow{{BloodType: domain.BloodType(bt), DonationDate: date, Units: units}})
	return err
}

func (bc *bankContext) recipient(id, bt string, units int64) error {
	_, err := bc.svc.RegisterRecipient(context.Background(), RecipientInput{ID: id, Name: "recipient " + id, BloodType: bt, Units: units})
	return err
}

func (bc *bankContext) process(id string) error {
	t, err := bc.svc.ProcessTransfusion(context.Background(), id)
	if err == nil {
		bc.transfusion = t
	}
	bc.err = err
	return nil
}

func (bc *bankContext) allocate(units int64, bt string) error {
	bc.allocations, bc.err = bc.svc.Allocate(context.Background(), AllocationInput{BloodType: bt, Units: units})
	return bc.err
}

func (bc *bankContext) transfusionUses(bt string) error {
	if bc.err != nil {
		return fmt.Errorf("transfusion failed: %w", bc.err)
	}
	if got := bc.transfusion.DonorBloodType.String(); got != bt {
		return fmt.Errorf("donor blood type = %s, want %s", got, bt)
	}
	return nil
}

func (bc *bankContext) failsWith(target error) func() error {
	return func() error {
		if !errors.Is(bc.err, target) {
			return fmt.Errorf("error = %v, want %v", bc.err, target)
		}
		return nil
	}
}

func (bc *bankContext) allocationIs(table *godog.Table) error {
	var want []domain.Allocation
	for _, row := range table.Rows[1:] {
		units, err := strconv.ParseInt(row.Cells[1].Value, 10, 64)
		if err != nil {
			return err
		}
		want = append(want, domain.Allocation{DonationDate: row.Cells[0].Value, Units: units})
	}
	if fmt.Sprint(want) != fmt.Sprint(bc.allocations) {
		return fmt.Errorf("allocation = %v, want %v", bc.allocations, want)
	}
	return nil
}

func (bc *bankContext) inventoryIs(table *godog.Table) error {
	want := make(map[string]int64)
	for _, row := range table.Rows[1:] {
		units, err := strconv.ParseInt(row.Cells[2].Value, 10, 64)
		if err != nil {
			return err
		}
		want[row.Cells[0].Value+"/"+row.Cells[1].Value] = units
	}
	batches, err := bc.svc.Inventory(context.Background())
	if err != nil {
		return err
	}
	got := make(map[string]int64, len(batches))
	for _, b := range batches {
		got[b.BloodType.String()+"/"+b.DonationDate] = b.Units
	}
	if fmt.Sprint(want) != fmt.Sprint(got) {
		return fmt.Errorf("inventory = %v, want %v", got, want)
	}
	return nil
}
