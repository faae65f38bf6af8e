package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-3))
	assert.Equal(t, 7, NormalizeLimit(7))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+1))
	assert.Equal(t, 8, LimitWithBuffer(7))
}

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2025, 3, 4, 12, 30, 0, 123456000, time.FixedZone("ART", -3*60*60))

	parsed, err := ParseCursor(EncodeCursor(Cursor{At: at, ID: 42}))
	require.NoError(t, err)
	require.NotNil(t, parsed)
	assert.True(t, parsed.At.Equal(at))
	assert.Equal(t, time.UTC, parsed.At.Location())
	assert.EqualValues(t, 42, parsed.ID)
}

func TestParseCursorEmptyMeansFirstPage(t *testing.T) {
	parsed, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, parsed)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	for _, raw := range []string{
		"***",
		base64.RawURLEncoding.EncodeToString([]byte("no-separator")),
		base64.RawURLEncoding.EncodeToString([]byte("yesterday|4")),
		base64.RawURLEncoding.EncodeToString([]byte("2025-03-04T00:00:00Z|0")),
	} {
		_, err := ParseCursor(raw)
		assert.Error(t, err, raw)
	}
}

func TestTrim(t *testing.T) {
	rows := []int{1, 2, 3}

	page, more := Trim(rows, 2)
	assert.Equal(t, []int{1, 2}, page)
	assert.True(t, more)

	page, more = Trim(rows, 3)
	assert.Equal(t, rows, page)
	assert.False(t, more)
}
