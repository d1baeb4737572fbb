package ranging

// emaFilter smooths a new range against the previous one with an
// exponential moving average over a window of n elements: k = 2/(n+1).
// The caller seeds the state with the first raw measurement and only
// filters from the second one on.
func emaFilter(value, previous float32, n uint16) float32 {
	k := 2.0 / (float32(n) + 1.0)
	return value*k + previous*(1.0-k)
}
