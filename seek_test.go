package rtspclientsrc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodeNPTZeroIsNow(t *testing.T) {
	require.Equal(t, "npt=now-", encodeRangeValue(SeekFormatNpt, 0, time.Time{}))
}

func TestEncodeNPTThreeDecimals(t *testing.T) {
	require.Equal(t, "npt=12.500-", encodeRangeValue(SeekFormatNpt, 12500*time.Millisecond, time.Time{}))
}

func TestEncodeSMPTE(t *testing.T) {
	position := 1*time.Hour + 2*time.Minute + 3*time.Second + 400*time.Millisecond
	require.Equal(t, "smpte=1:02:03:12-", encodeRangeValue(SeekFormatSmpte, position, time.Time{}))
}

func TestEncodeClockIncludesMilliseconds(t *testing.T) {
	base := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	got := encodeRangeValue(SeekFormatClock, 5*time.Second, base)
	require.Equal(t, "clock=20260730T100005.000Z-", got)
}
