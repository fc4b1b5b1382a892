package service

import (
	"strings"

	"bloodbank/m/domain"
)

type DonorInput struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	BloodType string `json:"blood_type"`
}

func (in DonorInput) validate() (domain.Donor, error) {
	id, name := strings.TrimSpace(in.ID), strings.TrimSpace(in.Name)
	if id == "" || name == "" || strings.TrimSpace(in.BloodType) == "" {
		return domain.Donor{}, domain.NewValidationError("", "id, name and blood_type are required")
	}
	bt, err := domain.ParseBloodType(in.BloodType)
	if err != nil {
		return domain.Donor{}, err
	}
	return domain.Donor{ID: id, Name: name, BloodType: bt}, nil
}

type DonationInput struct {
	DonorID string `json:"-"`
	Units   int64  `json:"units"`
	Date    string `json:"date"`
}

func (in DonationInput) validate() (string, error) {
	if strings.TrimSpace(in.DonorID) == "" {
		return "", domain.NewValidationError("donor_id", "is required")
	}
	if in.Units <= 0 {
		return "", domain.NewValidationError("units", "must be a positive integer")
	}
	return domain.ParseDate("date", in.Date)
}

type RecipientInput struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	BloodType string `json:"blood_type"`
	Units     int64  `json:"required_units"`
}

func (in RecipientInput) validate() (domain.Recipient, error) {
	id, name := strings.TrimSpace(in.ID), strings.TrimSpace(in.Name)
	if id == "" || name == "" || strings.TrimSpace(in.BloodType) == "" {
		return domain.Recipient{}, domain.NewValidationError("", "id, name and blood_type are required")
	}
	bt, err := domain.ParseBloodType(in.BloodType)
	if err != nil {
		return domain.Recipient{}, err
	}
	if in.Units <= 0 {
		return domain.Recipient{}, domain.NewValidationError("required_units", "must be a positive integer")
	}
	return domain.Recipient{ID: id, Name: name, BloodType: bt, RequiredUnits: in.Units, Status: domain.RecipientPending}, nil
}

type AllocationInput struct {
	BloodType string `json:"blood_type"`
	Units     int64  `json:"units"`
}

func (in AllocationInput) validate() (domain.BloodType, error) {
	bt, err := domain.ParseBloodType(in.BloodType)
	if err != nil {
		return "", err
	}
	if in.Units < 0 {
		return "", domain.NewValidationError("units", "must not be negative")
	}
	return bt, nil
}
