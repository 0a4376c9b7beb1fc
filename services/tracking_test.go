package services

import (
	"bytes"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var trackingPattern = regexp.MustCompile(`^TRK-\d{8}-[0-9A-F]{6}$`)

func TestNewTrackingID_Format(t *testing.T) {
	for i := 0; i < 200; i++ {
		id := NewTrackingID()
		assert.Regexp(t, trackingPattern, id)
	}
}

func TestNewTrackingID_UsesUTCDate(t *testing.T) {
	// 23:30 in UTC-5 is already the next day in UTC
	loc := time.FixedZone("EST", -5*3600)
	now := time.Date(2026, 3, 1, 23, 30, 0, 0, loc)

	id, err := trackingIDAt(now, bytes.NewReader([]byte{0xab, 0x0c, 0xef}))
	require.NoError(t, err)
	assert.Equal(t, "TRK-20260302-AB0CEF", id)
}

func TestNewTrackingID_DistinctSuffixes(t *testing.T) {
	a, b := NewTrackingID(), NewTrackingID()
	// 1 in 16M chance of a false failure
	assert.NotEqual(t, a, b)
}

func TestTrackingIDAt_ShortRead(t *testing.T) {
	_, err := trackingIDAt(time.Now(), bytes.NewReader([]byte{0x01}))
	assert.Error(t, err)
}
