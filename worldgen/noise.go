package worldgen

import "math"

func FloorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func Mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func Hash2(seed int64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uz * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

func Hash3(seed int64, x, y, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uy := uint64(uint32(int32(y)))
	uz := uint64(uint32(int32(z)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uy * 0xc2b2ae3d27d4eb4f) ^ (uz * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

// unit maps a hash to [-1, 1).
func unit(h uint64) float64 {
	return float64(h>>11)/(1<<53)*2 - 1
}

func smooth(t float64) float64 { return t * t * (3 - 2*t) }

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

// Noise2 is smoothed value noise on the integer lattice, in [-1, 1].
func Noise2(seed int64, x, z float64) float64 {
	x0, z0 := math.Floor(x), math.Floor(z)
	ix, iz := int(x0), int(z0)
	u, v := smooth(x-x0), smooth(z-z0)
	a := lerp(unit(Hash2(seed, ix, iz)), unit(Hash2(seed, ix+1, iz)), u)
	b := lerp(unit(Hash2(seed, ix, iz+1)), unit(Hash2(seed, ix+1, iz+1)), u)
	return lerp(a, b, v)
}

// Noise3 is the three dimensional counterpart of Noise2.
func Noise3(seed int64, x, y, z float64) float64 {
	x0, y0, z0 := math.Floor(x), math.Floor(y), math.Floor(z)
	ix, iy, iz := int(x0), int(y0), int(z0)
	u, v, w := smooth(x-x0), smooth(y-y0), smooth(z-z0)
	corner := func(dx, dy, dz int) float64 {
		return unit(Hash3(seed, ix+dx, iy+dy, iz+dz))
	}
	a := lerp(lerp(corner(0, 0, 0), corner(1, 0, 0), u), lerp(corner(0, 1, 0), corner(1, 1, 0), u), v)
	b := lerp(lerp(corner(0, 0, 1), corner(1, 0, 1), u), lerp(corner(0, 1, 1), corner(1, 1, 1), u), v)
	return lerp(a, b, w)
}

// Octaves sums n octaves of Noise2, each at double the frequency and
// persistence times the amplitude of the previous one. The result is
// normalised back to [-1, 1].
func Octaves(seed int64, x, z float64, n int, persistence float64) float64 {
	var sum, norm float64
	amp, freq := 1.0, 1.0
	for i := 0; i < n; i++ {
		sum += Noise2(seed+int64(i)*31, x*freq, z*freq) * amp
		norm += amp
		amp *= persistence
		freq *= 2
	}
	return sum / norm
}
