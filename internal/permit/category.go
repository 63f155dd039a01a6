package permit

// Category is the permit family a record belongs to.
type Category string

const (
	CategorySkill1  Category = "skill1"
	CategorySkill2  Category = "skill2"
	CategoryTrainee Category = "trainee"
	CategoryOther   Category = "other"
)

// Status text markers.
const (
	MarkerSpecifiedSkill = "特定技能"
	MarkerTypeSuffix     = "号"
	MarkerTrainee        = "技能実習"
)

// Classify maps a free-text permit status to its category. It never fails:
// empty or unrecognised text is CategoryOther.
func Classify(rawStatus string) Category {
	return ruleFor(Normalize(rawStatus)).Category
}

// Accrues reports whether records of the category accumulate elapsed days.
func (c Category) Accrues() bool {
	return ruleOf(c).accrues
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategorySkill1, CategorySkill2, CategoryTrainee, CategoryOther:
		return true
	}
	return false
}
