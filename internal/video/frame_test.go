package video

import (
	"testing"
	"time"
)

func TestTimestampWords(t *testing.T) {
	tests := []struct {
		name     string
		ms       int64
		wantSecs int64
		wantFrac int64
	}{
		{"exact second", 1_700_000_000_000, 1_700_000_000, 0},
		{"half second", 1_700_000_000_500, 1_700_000_000, 500 * 10000},
		{"one ms before rollover", 1_700_000_000_999, 1_700_000_000, 999 * 10000},
		{"epoch", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := Timestamp(time.UnixMilli(tt.ms))
			secs := ts >> 32
			frac := ts & 0xffffffff
			if secs != tt.wantSecs || frac != tt.wantFrac {
				t.Fatalf("Timestamp(%dms) = (%d, %d), want (%d, %d)",
					tt.ms, secs, frac, tt.wantSecs, tt.wantFrac)
			}
		})
	}
}

func TestTimecodeRatio(t *testing.T) {
	ts := Timestamp(time.UnixMilli(1_700_000_000_500))
	if tc := ts / 100; tc != ts/100 || tc >= ts {
		t.Fatalf("timecode %d not coarser than timestamp %d", tc, ts)
	}
}

func TestInterval(t *testing.T) {
	tests := []struct {
		name         string
		rateN, rateD int
		want         time.Duration
	}{
		{"30 fps", 30000, 1000, time.Second / 30},
		{"25 fps", 25000, 1000, 40 * time.Millisecond},
		{"29.97 fps", 29970, 1000, time.Duration(int64(time.Second) * 1000 / 29970)},
		{"invalid falls back", 0, 1000, time.Second / 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &NetFrame{RateN: tt.rateN, RateD: tt.rateD}
			if got := f.Interval(); got != tt.want {
				t.Fatalf("Interval() = %v, want %v", got, tt.want)
			}
		})
	}
}
