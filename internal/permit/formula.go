package permit

import (
	"fmt"
	"strings"
)

// RowRefs holds the spreadsheet cell references of one row. An empty
// reference means the column is absent.
type RowRefs struct {
	Status     string
	Permission string
	Expiration string
	Prior      string
	Thresholds []string
}

// ElapsedDaysFormula renders ElapsedDays as a spreadsheet formula over refs,
// built from the same rule table. ok is false when the row lacks a date column,
// in which case the value is always blank.
func ElapsedDaysFormula(refs RowRefs) (formula string, ok bool) {
	if refs.Permission == "" || refs.Expiration == "" {
		return "", false
	}
	base := fmt.Sprintf("(%s-%s+1)", refs.Expiration, refs.Permission)

	accrual := `""`
	switch {
	case refs.Prior != "":
		accrual = fmt.Sprintf(`IF(%s="","",%s+%s)`, refs.Prior, refs.Prior, base)
	case refs.Status != "":
		if conds := ruleConditions(refs.Status, func(r categoryRule) bool {
			return r.accrues && r.missingPriorAsZero
		}); conds != "" {
			accrual = fmt.Sprintf(`IF(OR(%s),%s,"")`, conds, base)
		}
	}

	if refs.Status != "" {
		if conds := ruleConditions(refs.Status, func(r categoryRule) bool { return !r.accrues }); conds != "" {
			accrual = fmt.Sprintf(`IF(OR(%s),"",%s)`, conds, accrual)
		}
	}
	return fmt.Sprintf(`IF(OR(%s="",%s=""),"",%s)`, refs.Permission, refs.Expiration, accrual), true
}

// DeadlineFormula renders expiration - threshold, blank when either input is blank.
func DeadlineFormula(expirationRef, thresholdRef string) string {
	return fmt.Sprintf(`IF(OR(%s="",%s=""),"",%s-%s)`, expirationRef, thresholdRef, expirationRef, thresholdRef)
}

func ruleConditions(statusRef string, include func(categoryRule) bool) string {
	var conds []string
	for _, rule := range categoryRules {
		if include(rule) {
			conds = append(conds, rule.condition(statusRef))
		}
	}
	return strings.Join(conds, ",")
}
