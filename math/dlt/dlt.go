/*package dlt implements the discrete Legendre transform pair used to move
angular power spectra to correlation functions and back. A Transform at
bandwidth B handles multipoles 0 <= l < B and samples correlation functions
on the 2B Gauss-Legendre nodes of [-1, 1], which integrate products of two
band-limited Legendre expansions exactly, so Analyze(Synthesize(cl)) = cl up
to rounding.*/
package dlt

import (
	"math"

	"gonum.org/v1/gonum/integrate/quad"
)

// Transform holds the nodes, quadrature weights and Legendre polynomial
// table for a fixed bandwidth.
type Transform struct {
	bw       int
	nodes    []float64
	weights  []float64
	legendre [][]float64 // legendre[k][l] = P_l(nodes[k])
}

// New creates a Transform at bandwidth bw (multipoles 0..bw-1).
func New(bw int) *Transform {
	if bw < 2 {
		panic("Transform bandwidth must be at least 2.")
	}
	n := 2 * bw
	t := &Transform{
		bw:      bw,
		nodes:   make([]float64, n),
		weights: make([]float64, n),
	}
	quad.Legendre{}.FixedLocations(t.nodes, t.weights, -1, 1)

	t.legendre = make([][]float64, n)
	for k, x := range t.nodes {
		row := make([]float64, bw)
		row[0] = 1
		if bw > 1 {
			row[1] = x
		}
		for l := 2; l < bw; l++ {
			fl := float64(l)
			row[l] = ((2*fl-1)*x*row[l-1] - (fl-1)*row[l-2]) / fl
		}
		t.legendre[k] = row
	}
	return t
}

// Bandwidth returns the number of multipoles handled by the transform.
func (t *Transform) Bandwidth() int { return t.bw }

// NSamples returns the number of correlation-function samples.
func (t *Transform) NSamples() int { return 2 * t.bw }

// Thetas returns the sampling angles arccos(x_k) in radians.
func (t *Transform) Thetas() []float64 {
	out := make([]float64, len(t.nodes))
	for k, x := range t.nodes {
		out[k] = math.Acos(x)
	}
	return out
}

// Synthesize evaluates xi(theta_k) = sum_l (2l+1)/(4pi) cl[l] P_l(x_k) at
// every node. len(cl) must equal the bandwidth. The result is written to xi,
// which must have length NSamples().
func (t *Transform) Synthesize(cl, xi []float64) {
	if len(cl) != t.bw || len(xi) != 2*t.bw {
		panic("Shape error.")
	}
	for k := range xi {
		row, sum := t.legendre[k], 0.0
		for l := range cl {
			sum += (2*float64(l) + 1) / (4 * math.Pi) * cl[l] * row[l]
		}
		xi[k] = sum
	}
}

// Analyze recovers cl[l] = 2pi * integral of xi(x) P_l(x) dx by quadrature.
// len(xi) must equal NSamples(); the result is written to cl, which must
// have length Bandwidth().
func (t *Transform) Analyze(xi, cl []float64) {
	if len(cl) != t.bw || len(xi) != 2*t.bw {
		panic("Shape error.")
	}
	for l := 0; l < t.bw; l++ {
		sum := 0.0
		for k := range xi {
			sum += t.weights[k] * xi[k] * t.legendre[k][l]
		}
		cl[l] = 2 * math.Pi * sum
	}
}
