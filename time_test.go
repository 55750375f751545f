package jobtracker_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobtracker "github.com/goliatone/go-jobtracker"
)

func TestIsWithinThresholdPeriod(t *testing.T) {
	now := testNow

	within, err := jobtracker.IsWithinThresholdPeriod(now, now.Add(-10*time.Minute), "15m")
	require.NoError(t, err)
	assert.True(t, within)

	within, err = jobtracker.IsWithinThresholdPeriod(now, now.Add(-20*time.Minute), "15m")
	require.NoError(t, err)
	assert.False(t, within)

	outside, err := jobtracker.IsOutsideThresholdPeriod(now, now.Add(-20*time.Minute), "15m")
	require.NoError(t, err)
	assert.True(t, outside)

	_, err = jobtracker.IsWithinThresholdPeriod(now, now, "fifteen minutes")
	assert.Error(t, err)
	_, err = jobtracker.IsOutsideThresholdPeriod(now, now, "")
	assert.Error(t, err)
}

func TestToday(t *testing.T) {
	assert.Equal(t, "2024-01-15", jobtracker.Today(fixedClock(testNow)).String())

	late := time.Date(2024, 1, 15, 23, 30, 0, 0, time.FixedZone("UTC-5", -5*60*60))
	assert.Equal(t, "2024-01-16", jobtracker.Today(fixedClock(late)).String())

	assert.False(t, jobtracker.Today(nil).IsZero())
}
