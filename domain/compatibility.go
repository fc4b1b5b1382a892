package domain

// compatibility maps a donor blood type to the recipient types that may receive it.
var compatibility = map[BloodType][]BloodType{
	ONeg:  {ONeg, OPos, ANeg, APos, BNeg, BPos, ABNeg, ABPos},
	OPos:  {OPos, APos, BPos, ABPos},
	ANeg:  {ANeg, APos, ABNeg, ABPos},
	APos:  {APos, ABPos},
	BNeg:  {BNeg, BPos, ABNeg, ABPos},
	BPos:  {BPos, ABPos},
	ABNeg: {ABNeg, ABPos},
	ABPos: {ABPos},
}

// Compatible reports whether blood from donor may be given to recipient.
func Compatible(donor, recipient BloodType) bool {
	for _, r := range compatibility[donor] {
		if r == recipient {
			return true
		}
	}
	return false
}

// RecipientsOf returns a copy of the recipient set for donor.
func RecipientsOf(donor BloodType) []BloodType {
	out := make([]BloodType, len(compatibility[donor]))
	copy(out, compatibility[donor])
	return out
}

// DonorsFor returns every donor type able to give to recipient, in canonical order.
func DonorsFor(recipient BloodType) []BloodType {
	var donors []BloodType
	for _, donor := range BloodTypes {
		if Compatible(donor, recipient) {
			donors = append(donors, donor)
		}
	}
	return donors
}
