/*package harmonic holds spherical-harmonic coefficient sets and the
reproducible correlated draw that fills them. Coefficients are stored in the
triangular layout j = l(l+1)/2 + m for 0 <= m <= l <= Lmax; the m=0 column
is real.*/
package harmonic

import "math"

// Alm is the triangular array of harmonic coefficients of one field.
type Alm struct {
	Lmax int
	data []complex128
}

// NewAlm creates a zeroed coefficient set for multipoles up to lmax.
func NewAlm(lmax int) *Alm {
	return &Alm{Lmax: lmax, data: make([]complex128, (lmax+1)*(lmax+2)/2)}
}

// At returns a_lm.
func (a *Alm) At(l, m int) complex128 { return a.data[l*(l+1)/2+m] }

// Set assigns a_lm.
func (a *Alm) Set(l, m int, v complex128) { a.data[l*(l+1)/2+m] = v }

// Len returns the number of stored coefficients.
func (a *Alm) Len() int { return len(a.data) }

// LM inverts the triangular index: j = l(l+1)/2 + m.
func LM(j int) (l, m int) {
	l = int((math.Sqrt(8*float64(j)+1) - 1) / 2)
	// Guard against rounding at triangle edges.
	for l*(l+1)/2 > j {
		l--
	}
	for (l+1)*(l+2)/2 <= j {
		l++
	}
	return l, j - l*(l+1)/2
}

// CrossCl estimates the cross spectrum of two coefficient sets as
// Cl = sum_m Re(a_lm conj(b_lm)) / (l+1), with the m sum truncated at mmax
// when mmax >= 0.
func CrossCl(a, b *Alm, lmin, lmax, mmax int) []float64 {
	out := make([]float64, lmax-lmin+1)
	for l := lmin; l <= lmax; l++ {
		top := l
		if mmax >= 0 && mmax < l {
			top = mmax
		}
		sum := 0.0
		for m := 0; m <= top; m++ {
			x, y := a.At(l, m), b.At(l, m)
			sum += real(x)*real(y) + imag(x)*imag(y)
		}
		out[l-lmin] = sum / float64(l+1)
	}
	return out
}
