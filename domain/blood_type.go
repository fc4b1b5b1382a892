package domain

import (
	"strconv"
	"strings"
)

// BloodType is one of the eight ABO/Rh groups.
type BloodType string

const (
	ONeg  BloodType = "O-"
	OPos  BloodType = "O+"
	ANeg  BloodType = "A-"
	APos  BloodType = "A+"
	BNeg  BloodType = "B-"
	BPos  BloodType = "B+"
	ABNeg BloodType = "AB-"
	ABPos BloodType = "AB+"
)

// BloodTypes lists every blood type in canonical order. Allocation and
// reporting iterate in this order.
var BloodTypes = []BloodType{ONeg, OPos, ANeg, APos, BNeg, BPos, ABNeg, ABPos}

// ParseBloodType normalises user input ("ab+ " -> "AB+") and rejects unknown groups.
func ParseBloodType(raw string) (BloodType, error) {
	bt := BloodType(strings.ToUpper(strings.TrimSpace(raw)))
	if bt.Index() < 0 {
		return "", NewValidationError("blood_type", "unknown blood type "+strconv.Quote(raw))
	}
	return bt, nil
}

// Index returns the position of bt in BloodTypes or -1.
func (bt BloodType) Index() int {
	for i, known := range BloodTypes {
		if bt == known {
			return i
		}
	}
	return -1
}

func (bt BloodType) Valid() bool { return bt.Index() >= 0 }

func (bt BloodType) String() string { return string(bt) }

