package domain

// InventoryBatch is the remaining stock of one donation day for one blood type.
type InventoryBatch struct {
	BloodType    BloodType `db:"blood_type" json:"blood_type"`
	DonationDate string    `db:"donation_date" json:"donation_date"`
	Units        int64     `db:"units" json:"units"`
}

// Allocation is the share taken from a single batch.
type Allocation struct {
	DonationDate string `db:"donation_date" json:"donation_date"`
	Units        int64  `db:"units" json:"units"`
}

// StockLevel classifies a total against the configured thresholds.
type StockLevel string

const (
	StockHigh   StockLevel = "high"
	StockMedium StockLevel = "medium"
	StockLow    StockLevel = "low"
)

type StockTotal struct {
	BloodType BloodType  `json:"blood_type"`
	Units     int64      `json:"units"`
	Level     StockLevel `json:"level"`
}

// ImportRow is one spreadsheet line merged into the ledger.
type ImportRow struct {
	Line         int       `json:"line"`
	BloodType    BloodType `json:"blood_type"`
	DonationDate string    `json:"donation_date"`
	Units        int64     `json:"units"`
}
