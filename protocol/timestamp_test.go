package protocol

import (
	"math"
	"testing"
	"time"
)

func TestTimestampByteRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		ts   Timestamp
	}{
		{"zero", 0},
		{"one", 1},
		{"mid", 0x123456789A},
		{"max", Timestamp(1)<<40 - 1},
		{"reply delay", TimestampFromMicros(7000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b [TimestampBytes]byte
			tt.ts.PutBytes(b[:])
			got := TimestampFromBytes(b[:])
			if got != tt.ts {
				t.Errorf("round trip = %d, want %d", got, tt.ts)
			}
		})
	}
}

func TestTimestampWrapSub(t *testing.T) {
	mod := int64(1) << 40
	pairs := []struct {
		a, b Timestamp
	}{
		{100, 40},
		{40, 100},
		{0, Timestamp(mod - 1)},
		{Timestamp(mod - 1), 0},
		{Timestamp(mod - 1000), Timestamp(mod - 2000)},
		{500, Timestamp(mod - 500)}, // counter rolled over between b and a
	}

	for _, p := range pairs {
		got := p.a.Sub(p.b)
		if got < 0 || int64(got) >= mod {
			t.Fatalf("Sub(%d, %d) = %d, outside [0, 2^40)", p.a, p.b, got)
		}
		if (int64(got)+int64(p.b))%mod != int64(p.a)%mod {
			t.Errorf("Sub(%d, %d) + %d != %d (mod 2^40)", p.a, p.b, p.b, p.a)
		}
	}
}

func TestTimestampWrapNegative(t *testing.T) {
	if got := Timestamp(-1).Wrap(); got != Timestamp(1)<<40-1 {
		t.Errorf("Wrap(-1) = %d, want 2^40-1", got)
	}
}

func TestTimestampConversions(t *testing.T) {
	ts := TimestampFromMicros(7000)
	if ts != 447283200 {
		t.Errorf("7000us = %d ticks, want 447283200", ts)
	}
	if got := TimestampFromDuration(7 * time.Millisecond); got != ts {
		t.Errorf("FromDuration(7ms) = %d, want %d", got, ts)
	}
	if us := ts.Micros(); math.Abs(us-7000) > 0.001 {
		t.Errorf("Micros() = %f, want 7000", us)
	}

	// 533 ticks of flight is just over 2.5 metres.
	if m := Timestamp(533).Meters(); math.Abs(m-2.5007) > 0.001 {
		t.Errorf("Meters(533) = %f, want ~2.5007", m)
	}
}
