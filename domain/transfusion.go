package domain

// Transfusion records a fulfilled recipient request and the batches it drew from.
type Transfusion struct {
	ID             string       `db:"transfusion_id" json:"id"`
	RecipientID    string       `db:"recipient_id" json:"recipient_id"`
	DonorBloodType BloodType    `db:"donor_blood_type" json:"donor_blood_type"`
	Units          int64        `db:"units" json:"units"`
	CreatedAt      string       `db:"created_at" json:"created_at"`
	Items          []Allocation `db:"-" json:"items"`
}
