package dbx

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTime_OrdersLexically(t *testing.T) {
	early := time.Date(2024, 1, 2, 3, 4, 5, 6, time.FixedZone("x", 3600))
	late := early.Add(time.Nanosecond)

	assert.Less(t, FormatTime(early), FormatTime(late))
	assert.Len(t, FormatTime(early), len(TimeLayout))
}

func TestParseTime_RoundTripsInUTC(t *testing.T) {
	in := time.Date(2024, 5, 6, 7, 8, 9, 123456789, time.FixedZone("x", -7200))

	out, err := ParseTime(FormatTime(in))
	require.NoError(t, err)
	assert.True(t, in.Equal(out))
	assert.Equal(t, time.UTC, out.Location())
}

func TestNullTime(t *testing.T) {
	assert.False(t, FormatNullTime(nil).Valid)

	got, err := ParseNullTime(sql.NullString{})
	require.NoError(t, err)
	assert.Nil(t, got)

	now := time.Now()
	got, err = ParseNullTime(FormatNullTime(&now))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, now.Equal(*got))

	_, err = ParseTime("yesterday")
	assert.Error(t, err)
}
