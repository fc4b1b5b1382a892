package domain

type Donor struct {
	ID           string    `db:"donor_id" json:"id"`
	Name         string    `db:"name" json:"name"`
	BloodType    BloodType `db:"blood_type" json:"blood_type"`
	LastDonation *string   `db:"last_donation" json:"last_donation,omitempty"`
}
