package permit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/permit-deadline-api/internal/models"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func intPtr(v int) *int {
	return &v
}

func TestElapsedDays(t *testing.T) {
	perm, exp := date(2024, 1, 1), date(2024, 1, 10)

	got := ElapsedDays("特定技能1号", perm, exp, intPtr(5))
	require.NotNil(t, got)
	assert.Equal(t, 15, *got)

	got = ElapsedDays("特定技能１号", perm, exp, nil)
	require.NotNil(t, got)
	assert.Equal(t, 10, *got)

	assert.Nil(t, ElapsedDays("特定技能2号", perm, exp, intPtr(5)))
	assert.Nil(t, ElapsedDays("技能実習1号", perm, exp, nil))
	assert.Nil(t, ElapsedDays("留学", perm, exp, nil))
	assert.Nil(t, ElapsedDays("特定技能1号", nil, exp, intPtr(5)))
	assert.Nil(t, ElapsedDays("特定技能1号", perm, nil, intPtr(5)))

	got = ElapsedDays("留学", perm, exp, intPtr(-3))
	require.NotNil(t, got)
	assert.Equal(t, 7, *got)
}

func TestDeadlines(t *testing.T) {
	exp := date(2024, 6, 30)
	got := Deadlines(exp, [models.ThresholdCount]*int{intPtr(90), nil, intPtr(30)})
	require.NotNil(t, got[0])
	assert.Equal(t, "2024-04-01", got[0].Format(ISODateLayout))
	assert.Nil(t, got[1])
	assert.Equal(t, "2024-05-31", got[2].Format(ISODateLayout))

	assert.Nil(t, Deadline(nil, intPtr(90)))
}

func TestDeadlineStatus(t *testing.T) {
	today := time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)
	overdue := StatusOf(date(2024, 5, 7), today)
	require.NotNil(t, overdue)
	assert.Equal(t, models.DeadlineStatus{Status: models.DeadlineOverdue, Days: 3}, *overdue)

	ok := StatusOf(date(2024, 5, 10), today)
	assert.Equal(t, models.DeadlineStatus{Status: models.DeadlineOK, Days: 0}, *ok)
	assert.Nil(t, StatusOf(nil, today))

	assert.True(t, DeadlinePassed([models.ThresholdCount]*time.Time{nil, date(2024, 5, 9), nil}, today))
	assert.False(t, DeadlinePassed([models.ThresholdCount]*time.Time{date(2024, 5, 10), nil, nil}, today))
}

func TestClassifySeverity(t *testing.T) {
	th := SeverityThresholds{Level1Max: intPtr(90), Level2Max: intPtr(60), Level3Max: intPtr(30)}

	level, ok := ClassifySeverity(intPtr(45), th)
	require.True(t, ok)
	assert.Equal(t, Level2, level)

	level, ok = ClassifySeverity(intPtr(30), th)
	require.True(t, ok)
	assert.Equal(t, Level3, level)

	level, ok = ClassifySeverity(intPtr(0), th)
	require.True(t, ok)
	assert.Equal(t, Level3, level)

	_, ok = ClassifySeverity(intPtr(91), th)
	assert.False(t, ok)
	_, ok = ClassifySeverity(intPtr(-3), th)
	assert.False(t, ok)
	_, ok = ClassifySeverity(nil, th)
	assert.False(t, ok)

	level, ok = ClassifySeverity(intPtr(45), SeverityThresholds{Level1Max: intPtr(90), Level3Max: intPtr(30)})
	require.True(t, ok)
	assert.Equal(t, Level1, level)
}

func TestThresholdsForFallsBackToDefaults(t *testing.T) {
	rec := models.Record{Thresholds: [models.ThresholdCount]*int{intPtr(120), intPtr(-5), nil}}
	th := ThresholdsFor(rec, DefaultThresholds)
	assert.Equal(t, 120, *th.Level1Max)
	assert.Equal(t, 60, *th.Level2Max)
	assert.Equal(t, 30, *th.Level3Max)
}

func TestExpirationStatus(t *testing.T) {
	assert.Equal(t, models.ExpirationUnknown, ExpirationStatus(nil))
	assert.Equal(t, models.ExpirationExpired, ExpirationStatus(intPtr(-1)))
	assert.Equal(t, models.ExpirationUrgent, ExpirationStatus(intPtr(7)))
	assert.Equal(t, models.ExpirationWarning, ExpirationStatus(intPtr(30)))
	assert.Equal(t, models.ExpirationCaution, ExpirationStatus(intPtr(90)))
	assert.Equal(t, models.ExpirationSafe, ExpirationStatus(intPtr(91)))
}
