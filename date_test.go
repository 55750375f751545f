package jobtracker_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobtracker "github.com/goliatone/go-jobtracker"
)

func TestParseDate(t *testing.T) {
	d, err := jobtracker.ParseDate(" 2024-02-29 ")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d.String())

	for _, bad := range []string{"", "2024-02-30", "02/01/2024", "2024-1-5", "2024-01-10T00:00:00Z"} {
		_, err := jobtracker.ParseDate(bad)
		assert.Error(t, err, bad)
	}
}

func TestDateArithmetic(t *testing.T) {
	d := jobtracker.NewDate(2024, time.January, 31)

	assert.Equal(t, "2024-02-01", d.AddDays(1).String())
	assert.Equal(t, "2024-01-01", d.FirstOfMonth().String())
	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.After(d.AddDays(-1)))
	assert.True(t, d.Equal(jobtracker.DateOf(time.Date(2024, 1, 31, 23, 59, 0, 0, time.UTC))))
}

func TestDateOfUsesUTC(t *testing.T) {
	zone := time.FixedZone("UTC+9", 9*60*60)
	local := time.Date(2024, 1, 16, 2, 0, 0, 0, zone)

	assert.Equal(t, "2024-01-15", jobtracker.DateOf(local).String())
}

func TestDateJSON(t *testing.T) {
	type payload struct {
		Date     jobtracker.Date  `json:"date"`
		Optional *jobtracker.Date `json:"optional"`
	}

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2024-01-10","optional":null}`), &p))
	assert.Equal(t, "2024-01-10", p.Date.String())
	assert.Nil(t, p.Optional)

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-01-10","optional":null}`, string(out))

	var zero jobtracker.Date
	out, err = json.Marshal(zero)
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"date":"10-01-2024"}`), &p))
	assert.Error(t, json.Unmarshal([]byte(`{"date":20240110}`), &p))
}

func TestDateScanAndValue(t *testing.T) {
	tests := []struct {
		name string
		src  any
		want string
	}{
		{name: "nil", src: nil, want: ""},
		{name: "time", src: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), want: "2024-01-10"},
		{name: "string", src: "2024-01-10", want: "2024-01-10"},
		{name: "bytes", src: []byte("2024-01-10"), want: "2024-01-10"},
		{name: "timestamp string", src: "2024-01-10 00:00:00+00:00", want: "2024-01-10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d jobtracker.Date
			require.NoError(t, d.Scan(tt.src))
			assert.Equal(t, tt.want, d.String())
		})
	}

	var d jobtracker.Date
	assert.Error(t, d.Scan(42))

	v, err := jobtracker.NewDate(2024, 1, 10).Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-01-10", v)

	v, err = jobtracker.Date{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}
