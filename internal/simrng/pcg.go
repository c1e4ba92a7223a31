package simrng

// pcg64 is a self-contained PCG-XSL-RR 128/64 generator (the PCG64 variant
// commonly paired with a 128-bit LCG state), chosen because it gives the
// "PCG-family 64-bit generator" spec.md §4.2 requires without depending on
// any Go PCG package — none of the retrieved example repos vendors one
// (see DESIGN.md). The 128-bit state is carried as two uint64 halves to
// avoid a math/bits/big dependency for the multiply-add step.
//
// This is the core's only hand-rolled primitive that stdlib or the example
// corpus could not supply; everything downstream of it (next_u64,
// next_f64, chance, pareto) is ordinary arithmetic.
type pcg64 struct {
	stateHi, stateLo uint64
	incHi, incLo     uint64
}

// PCG default 128-bit multiplier (Lemire/O'Neill's constant, split across
// two uint64 words): 0x2360ed051fc65da44385df649fccf645.
const (
	mulHi uint64 = 0x2360ed051fc65da4
	mulLo uint64 = 0x4385df649fccf645
)

// mul128 computes (hi:lo) * (mulHi:mulLo) mod 2^128, returning the high and
// low 64-bit halves of the product.
func mul128(hi, lo uint64) (rhi, rlo uint64) {
	// Full 128x128 -> 128 (truncated) multiply, keeping only the low 128
	// bits of the 256-bit product, which is exactly what an LCG needs.
	loLo, loHi := bitsMul64(lo, mulLo)
	crossA, _ := bitsMul64(lo, mulHi)
	crossB, _ := bitsMul64(hi, mulLo)
	rlo = loLo
	rhi = loHi + crossA + crossB
	return rhi, rlo
}

// bitsMul64 returns the 128-bit product of two uint64 values as (lo, hi).
func bitsMul64(a, b uint64) (lo, hi uint64) {
	const mask32 = 0xffffffff
	aLo, aHi := a&mask32, a>>32
	bLo, bHi := b&mask32, b>>32

	t := aLo * bLo
	w0 := t & mask32
	k := t >> 32

	t = aHi*bLo + k
	w1 := t & mask32
	w2 := t >> 32

	t = aLo*bHi + w1
	k = t >> 32

	hi = aHi*bHi + w2 + k
	lo = (t << 32) | w0
	return lo, hi
}

// add128 adds two 128-bit values represented as uint64 halves.
func add128(ahi, alo, bhi, blo uint64) (hi, lo uint64) {
	lo = alo + blo
	carry := uint64(0)
	if lo < alo {
		carry = 1
	}
	hi = ahi + bhi + carry
	return hi, lo
}

// newPCG64 seeds the generator deterministically from a single 64-bit seed,
// expanding it into both the initial state and the odd increment (the
// stream selector), then runs the PCG setup step once.
func newPCG64(seed uint64) *pcg64 {
	g := &pcg64{}
	// Derive a 128-bit seed and a 128-bit (odd) increment from the 64-bit
	// input via a fixed-point splitmix64-style expansion, keeping the
	// derivation entirely deterministic and seed->stream total.
	s0 := splitmix64(&seed)
	s1 := splitmix64(&seed)
	i0 := splitmix64(&seed)
	i1 := splitmix64(&seed)

	g.incHi = i0
	g.incLo = i1 | 1 // PCG requires an odd increment.

	g.stateHi, g.stateLo = add128(0, 0, s0, s1)
	g.step()
	g.stateHi, g.stateLo = add128(g.stateHi, g.stateLo, 0, 0)
	return g
}

// splitmix64 advances *x and returns a well-mixed 64-bit value; used only to
// expand a single seed into the several independent constants PCG setup
// needs, never as a source of simulation randomness itself.
func splitmix64(x *uint64) uint64 {
	*x += 0x9E3779B97F4A7C15
	z := *x
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	z = z ^ (z >> 31)
	return z
}

// step advances the 128-bit LCG state by one position: state = state*mult + inc.
func (g *pcg64) step() {
	hi, lo := mul128(g.stateHi, g.stateLo)
	g.stateHi, g.stateLo = add128(hi, lo, g.incHi, g.incLo)
}

// next64 produces one 64-bit output word using the XSL-RR (xorshift-low,
// random-rotation) output function applied to the pre-advance state, then
// advances the state.
func (g *pcg64) next64() uint64 {
	hi, lo := g.stateHi, g.stateLo
	g.step()

	xored := hi ^ lo
	rot := uint(hi >> 58) // top 6 bits of hi select the rotation amount
	return rotr64(xored, rot)
}

func rotr64(v uint64, r uint) uint64 {
	r &= 63
	if r == 0 {
		return v
	}
	return (v >> r) | (v << (64 - r))
}
