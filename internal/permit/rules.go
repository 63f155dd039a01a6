package permit

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

type priorPolicy int

const (
	priorOptional priorPolicy = iota
	priorRequired
	priorForbidden
)

// categoryRule is one row of the decision table shared by the value
// calculator and the formula renderer.
type categoryRule struct {
	Category Category
	// matches runs on normalized status text.
	matches func(normalized string) bool
	// condition renders the same predicate as a spreadsheet expression over
	// the raw, possibly un-normalized, status cell.
	condition          func(statusRef string) string
	accrues            bool
	prior              priorPolicy
	missingPriorAsZero bool
}

// Rules are evaluated in order. Trainee comes first and Skill2 before Skill1
// so the first match agrees with the branch order of the elapsed-days formula.
var categoryRules = []categoryRule{
	{
		Category:  CategoryTrainee,
		matches:   func(s string) bool { return strings.HasPrefix(s, MarkerTrainee) },
		condition: prefixCondition(MarkerTrainee),
		prior:     priorForbidden,
	},
	{
		Category:  CategorySkill2,
		matches:   skillTypeMatcher('2'),
		condition: skillTypeCondition('2', '２'),
		prior:     priorForbidden,
	},
	{
		Category:           CategorySkill1,
		matches:            skillTypeMatcher('1'),
		condition:          skillTypeCondition('1', '１'),
		accrues:            true,
		prior:              priorRequired,
		missingPriorAsZero: true,
	},
}

var otherRule = categoryRule{
	Category: CategoryOther,
	matches:  func(string) bool { return true },
	accrues:  true,
	prior:    priorOptional,
}

func ruleFor(normalized string) categoryRule {
	for _, rule := range categoryRules {
		if rule.matches(normalized) {
			return rule
		}
	}
	return otherRule
}

func ruleOf(category Category) categoryRule {
	for _, rule := range categoryRules {
		if rule.Category == category {
			return rule
		}
	}
	return otherRule
}

func skillTypeMatcher(digit rune) func(string) bool {
	marker := string(digit) + MarkerTypeSuffix
	return func(s string) bool {
		return strings.Contains(s, MarkerSpecifiedSkill) && strings.Contains(s, marker)
	}
}

func prefixCondition(marker string) func(string) string {
	return func(ref string) string {
		return fmt.Sprintf(`LEFT(%s,%d)="%s"`, ref, utf8.RuneCountInString(marker), marker)
	}
}

func skillTypeCondition(halfWidth, fullWidth rune) func(string) string {
	return func(ref string) string {
		return fmt.Sprintf(`AND(ISNUMBER(SEARCH("%s",%s)),OR(ISNUMBER(SEARCH("%c%s",%s)),ISNUMBER(SEARCH("%c%s",%s))))`,
			MarkerSpecifiedSkill, ref,
			halfWidth, MarkerTypeSuffix, ref,
			fullWidth, MarkerTypeSuffix, ref)
	}
}

// PersistedPriorElapsedDays returns the prior elapsed days as written to a
// workbook: blank where the category forbids it and 0 where a missing value
// counts as zero, so the elapsed-days formula reproduces the in-memory value.
func PersistedPriorElapsedDays(status string, v *int) *int {
	rule := ruleFor(Normalize(status))
	switch {
	case rule.prior == priorForbidden:
		return nil
	case v == nil && rule.missingPriorAsZero:
		zero := 0
		return &zero
	}
	return v
}
