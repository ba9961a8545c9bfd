package enums

type Intent string

const (
	IntentExploring         Intent = "exploring"
	IntentDatingForMarriage Intent = "dating_for_marriage"
	IntentReadyForMarriage  Intent = "ready_for_marriage"
)

func (i Intent) Valid() bool {
	switch i {
	case IntentExploring, IntentDatingForMarriage, IntentReadyForMarriage:
		return true
	default:
		return false
	}
}

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}
