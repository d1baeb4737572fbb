package protocol

import "time"

// Timestamp is a 40-bit DW1000 device-time value. One tick is
// 1/(128*499.2 MHz) s, roughly 15.65 ps, so the counter wraps about every
// 17.2 seconds. Values are kept in an int64 so that TWR products of two
// wrapped differences stay in 64-bit integer space.
type Timestamp int64

const (
	// TimestampBytes is the on-air size of a device timestamp.
	TimestampBytes = 5

	timestampMask = (int64(1) << 40) - 1

	// TimeResUS is the tick length in microseconds.
	TimeResUS = 0.000015650040064103
	// TicksPerUS is the inverse, ticks per microsecond (128 * 499.2).
	TicksPerUS = 63897.6

	// DistancePerTick is metres of radio travel per tick (c * TimeResUS).
	DistancePerTick = 0.0046917639786159
)

// TimestampFromBytes reads a timestamp from its 5-byte little-endian wire
// form.
func TimestampFromBytes(b []byte) Timestamp {
	var t int64
	for i := TimestampBytes - 1; i >= 0; i-- {
		t = t<<8 | int64(b[i])
	}
	return Timestamp(t)
}

// TimestampFromMicros converts a duration in microseconds to device ticks.
func TimestampFromMicros(us float64) Timestamp {
	return Timestamp(us*TicksPerUS + 0.5)
}

// TimestampFromDuration converts a host duration to device ticks.
func TimestampFromDuration(d time.Duration) Timestamp {
	return TimestampFromMicros(float64(d.Nanoseconds()) / 1e3)
}

// PutBytes writes the timestamp into b in its 5-byte little-endian wire form.
func (t Timestamp) PutBytes(b []byte) {
	v := int64(t) & timestampMask
	for i := 0; i < TimestampBytes; i++ {
		b[i] = byte(v)
		v >>= 8
	}
}

// Wrap reduces the value into [0, 2^40). Masking handles negative inputs
// too: the low 40 bits of a two's-complement negative are exactly the
// modular result.
func (t Timestamp) Wrap() Timestamp {
	return Timestamp(int64(t) & timestampMask)
}

// Add returns (t + o) mod 2^40.
func (t Timestamp) Add(o Timestamp) Timestamp {
	return (t + o).Wrap()
}

// Sub returns (t - o) mod 2^40. The result is always non-negative, which is
// what the TWR arithmetic relies on when the counter rolls over between two
// causally ordered timestamps.
func (t Timestamp) Sub(o Timestamp) Timestamp {
	return (t - o).Wrap()
}

// Micros returns the value as microseconds.
func (t Timestamp) Micros() float64 {
	return float64(t) * TimeResUS
}

// Meters interprets the value as a time of flight and returns the distance
// light travels in it.
func (t Timestamp) Meters() float64 {
	return float64(t) * DistancePerTick
}
