package domain

type RecipientStatus string

const (
	RecipientPending   RecipientStatus = "pending"
	RecipientFulfilled RecipientStatus = "fulfilled"
)

type Recipient struct {
	ID            string          `db:"recipient_id" json:"id"`
	Name          string          `db:"name" json:"name"`
	BloodType     BloodType       `db:"blood_type" json:"blood_type"`
	RequiredUnits int64           `db:"required_units" json:"required_units"`
	RequestDate   string          `db:"request_date" json:"request_date"`
	Status        RecipientStatus `db:"status" json:"status"`
	FulfilledAt   *string         `db:"fulfilled_at" json:"fulfilled_at,omitempty"`
}
