// Package pagination bounds the numeric query parameters used for listings.
package pagination

// Bounds constrains a numeric query parameter. Values outside [Min, Max] are
// clamped and unset values take Default.
type Bounds struct {
	Min     int
	Max     int
	Default int
}

// Clamp returns v limited to [Min, Max]. A zero Max leaves v unbounded above.
func (b Bounds) Clamp(v int) int {
	if v < b.Min {
		return b.Min
	}
	if b.Max > 0 && v > b.Max {
		return b.Max
	}
	return v
}

// Resolve treats a non-positive v as unset, substitutes Default, and clamps.
func (b Bounds) Resolve(v int) int {
	if v <= 0 {
		v = b.Default
	}
	return b.Clamp(v)
}
