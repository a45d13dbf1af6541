package rtspclientsrc

import (
	"fmt"
	"time"
)

// clockSeekLayout is deliberately always three-decimal, matching the
// Clock seek format's "[.nnn]" slot rather than omitting it when the
// millisecond component is zero.
const clockSeekLayout = "20060102T150405.000Z"

// encodeRangeValue renders position (time elapsed since the start of
// the stream) as a Range header value in the given unit, including the
// trailing "-" that marks an open-ended range. now is the wall-clock
// time Clock anchors its absolute timestamp to; callers outside tests
// always pass time.Now().
func encodeRangeValue(format SeekFormat, position time.Duration, now time.Time) string {
	switch format {
	case SeekFormatSmpte:
		return "smpte=" + encodeSMPTE(position) + "-"
	case SeekFormatClock:
		return "clock=" + encodeClock(position, now) + "-"
	default:
		return "npt=" + encodeNPT(position) + "-"
	}
}

// encodeNPT formats position as "<secs>.<ms>", or "now" at the start of
// the stream, per the Npt seek convention.
func encodeNPT(position time.Duration) string {
	if position <= 0 {
		return "now"
	}
	return fmt.Sprintf("%.3f", position.Seconds())
}

// encodeSMPTE formats position as a non-drop-frame H:MM:SS:FF timecode,
// assuming 30 frames per second. Drop-frame correction is not applied;
// the stream's SMPTE base rate is taken to already account for it.
func encodeSMPTE(position time.Duration) string {
	const fps = 30
	totalFrames := int64(position.Seconds() * fps)
	frame := totalFrames % fps
	totalSeconds := totalFrames / fps
	h := totalSeconds / 3600
	m := (totalSeconds % 3600) / 60
	s := totalSeconds % 60
	return fmt.Sprintf("%d:%02d:%02d:%02d", h, m, s, frame)
}

// encodeClock formats now+position as an absolute UTC timestamp.
func encodeClock(position time.Duration, now time.Time) string {
	return now.UTC().Add(position).Format(clockSeekLayout)
}
