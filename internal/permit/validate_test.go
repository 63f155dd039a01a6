package permit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePriorElapsedDaysSkill1(t *testing.T) {
	v, err := ParsePriorElapsedDays(CategorySkill1, "120")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 120, *v)

	v, err = ParsePriorElapsedDays(CategorySkill1, "１５")
	require.NoError(t, err)
	assert.Equal(t, 15, *v)

	v, err = ParsePriorElapsedDays(CategorySkill1, "30.0")
	require.NoError(t, err)
	assert.Equal(t, 30, *v)

	for _, raw := range []string{"", "  ", "-1", "abc", "1.5"} {
		_, err := ParsePriorElapsedDays(CategorySkill1, raw)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr), raw)
		assert.Equal(t, FieldPriorElapsedDays, verr.Field)
		assert.Equal(t, CategorySkill1, verr.Category)
	}
}

func TestParsePriorElapsedDaysForbidden(t *testing.T) {
	for _, category := range []Category{CategoryTrainee, CategorySkill2} {
		v, err := ParsePriorElapsedDays(category, "")
		require.NoError(t, err)
		assert.Nil(t, v)

		_, err = ParsePriorElapsedDays(category, "0")
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "must be blank", verr.Message)
	}
}

func TestParsePriorElapsedDaysOther(t *testing.T) {
	v, err := ParsePriorElapsedDays(CategoryOther, "")
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = ParsePriorElapsedDays(CategoryOther, "-12")
	require.NoError(t, err)
	assert.Equal(t, -12, *v)

	_, err = ParsePriorElapsedDays(CategoryOther, "twelve")
	require.Error(t, err)

	for _, raw := range []string{"1e300", "-1e300", "9e18", "9000000000000000000"} {
		v, err := ParsePriorElapsedDays(CategoryOther, raw)
		require.Error(t, err, raw)
		assert.Nil(t, v, raw)
	}
}

func TestValidatePriorElapsedDays(t *testing.T) {
	five := 5
	assert.NoError(t, ValidatePriorElapsedDays(CategorySkill1, &five))
	assert.Error(t, ValidatePriorElapsedDays(CategorySkill1, nil))
	assert.Error(t, ValidatePriorElapsedDays(CategorySkill2, &five))
	assert.NoError(t, ValidatePriorElapsedDays(CategoryOther, nil))
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{"2024-03-09", "2024/03/09", "2024/3/9", "２０２４-０３-０９", "2024-03-09 13:45:00"} {
		got, err := ParseDate(FieldExpirationDate, raw)
		require.NoError(t, err, raw)
		require.NotNil(t, got)
		assert.True(t, want.Equal(*got), raw)
	}

	got, err := ParseDate(FieldExpirationDate, "")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = ParseDate(FieldExpirationDate, "soon")
	var perr *DateParseError
	require.True(t, errors.As(err, &perr))

	_, err = ParseDate(FieldBirthDate, "1899-12-31")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
}

func TestParseThreshold(t *testing.T) {
	cases := []struct {
		raw  string
		want *int
	}{
		{"90", intPtr(90)},
		{"45.9", intPtr(45)},
		{"0", intPtr(0)},
		{"2147483647", intPtr(MaxDayCount)},
		{"-1", nil},
		{"x", nil},
		{"", nil},
		{"1e300", nil},
		{"9e18", nil},
		{"2147483648", nil},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseThreshold(tc.raw), tc.raw)
	}

	expiration := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	assert.Nil(t, Deadline(&expiration, ParseThreshold("1e300")))
}

func TestParseCount(t *testing.T) {
	v, err := ParseCount(FieldPriorElapsedDays, "")
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = ParseCount(FieldPriorElapsedDays, "-3")
	require.NoError(t, err)
	assert.Equal(t, -3, *v)

	_, err = ParseCount(FieldPriorElapsedDays, "n/a")
	require.Error(t, err)

	_, err = ParseCount(FieldPriorElapsedDays, "9e18")
	require.Error(t, err)
}
