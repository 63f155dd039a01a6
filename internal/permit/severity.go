package permit

import (
	"sort"

	"github.com/noah-isme/permit-deadline-api/internal/models"
)

// Level is a severity tier derived from days remaining until expiration.
type Level string

const (
	Level1 Level = "level1"
	Level2 Level = "level2"
	Level3 Level = "level3"
)

// DefaultThresholds are applied when a record carries no usable threshold.
var DefaultThresholds = [models.ThresholdCount]int{90, 60, 30}

// SeverityThresholds holds the upper bound (inclusive) of each level. A nil
// bound disables that level.
type SeverityThresholds struct {
	Level1Max *int
	Level2Max *int
	Level3Max *int
}

type tier struct {
	max   int
	level Level
}

// ClassifySeverity returns the level whose bound is the smallest one still
// >= daysRemaining. Unknown or negative days have no level; expiry is reported
// separately.
func ClassifySeverity(daysRemaining *int, thresholds SeverityThresholds) (Level, bool) {
	if daysRemaining == nil || *daysRemaining < 0 {
		return "", false
	}

	tiers := make([]tier, 0, models.ThresholdCount)
	for _, candidate := range []struct {
		max   *int
		level Level
	}{
		{thresholds.Level1Max, Level1},
		{thresholds.Level2Max, Level2},
		{thresholds.Level3Max, Level3},
	} {
		if candidate.max != nil {
			tiers = append(tiers, tier{max: *candidate.max, level: candidate.level})
		}
	}
	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].max < tiers[j].max })

	for _, t := range tiers {
		if t.max >= *daysRemaining {
			return t.level, true
		}
	}
	return "", false
}

// SanitizeThreshold returns v when it is a usable day count, else fallback.
func SanitizeThreshold(v *int, fallback int) int {
	if v == nil || *v < 0 {
		return fallback
	}
	return *v
}

// ThresholdsFor maps a record's thresholds onto severity bounds, threshold i
// bounding level i, with defaults filling unusable values.
func ThresholdsFor(r models.Record, defaults [models.ThresholdCount]int) SeverityThresholds {
	var bounds [models.ThresholdCount]*int
	for i := range bounds {
		v := SanitizeThreshold(r.Thresholds[i], defaults[i])
		bounds[i] = &v
	}
	return SeverityThresholds{Level1Max: bounds[0], Level2Max: bounds[1], Level3Max: bounds[2]}
}
