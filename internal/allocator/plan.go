package allocator

import (
	"sort"

	"bloodbank/m/domain"
)

// Plan computes the oldest-first draw of needed units from batches without
// touching storage. Batches may be passed in any order. When the batches
// cannot cover the request an *domain.InsufficientStockError is returned.
func Plan(bt domain.BloodType, batches []domain.InventoryBatch, needed int64) ([]domain.Allocation, error) {
	if needed < 0 {
		return nil, domain.NewValidationError("units", "must not be negative")
	}
	if needed == 0 {
		return []domain.Allocation{}, nil
	}

	sorted := make([]domain.InventoryBatch, 0, len(batches))
	var available int64
	for _, b := range batches {
		if b.Units > 0 {
			sorted = append(sorted, b)
			available += b.Units
		}
	}
	if available < needed {
		return nil, &domain.InsufficientStockError{BloodType: bt, Needed: needed, Available: available}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].DonationDate < sorted[j].DonationDate })

	var allocations []domain.Allocation
	remaining := needed
	for _, b := range sorted {
		if remaining == 0 {
			break
		}
		take := min(b.Units, remaining)
		allocations = append(allocations, domain.Allocation{DonationDate: b.DonationDate, Units: take})
		remaining -= take
	}
	return allocations, nil
}
