package healpix

import "math"

// lambdaTable evaluates the normalized associated Legendre functions
// lambda_lm(x) = sqrt((2l+1)/(4pi) (l-m)!/(l+m)!) P_lm(x) for one fixed m
// and all l in [m, lmax], writing lambda_lm into out[l]. s = sin(theta) =
// sqrt(1-x^2). seed must hold lambda_mm on entry when m > 0; the function
// returns lambda_(m+1)(m+1) for the next call, so a caller looping over m
// threads the diagonal value through.
//
// The diagonal recurrence is lambda_mm = -sqrt((2m+1)/(2m)) s
// lambda_(m-1)(m-1) with lambda_00 = 1/sqrt(4pi); upward in l,
// lambda_lm = a_lm (x lambda_(l-1)m - lambda_(l-2)m / a_(l-1)m) with
// a_lm = sqrt((4l^2-1)/(l^2-m^2)).
func lambdaTable(m, lmax int, x, s, seed float64, out []float64) (nextSeed float64) {
	lamMM := seed
	if m == 0 {
		lamMM = 1 / math.Sqrt(4*math.Pi)
	}
	out[m] = lamMM
	if m < lmax {
		out[m+1] = x * math.Sqrt(2*float64(m)+3) * lamMM
	}
	for l := m + 2; l <= lmax; l++ {
		fl, fm := float64(l), float64(m)
		alm := math.Sqrt((4*fl*fl - 1) / (fl*fl - fm*fm))
		alm1 := math.Sqrt((4*(fl-1)*(fl-1) - 1) / ((fl-1)*(fl-1) - fm*fm))
		out[l] = alm * (x*out[l-1] - out[l-2]/alm1)
	}
	return -math.Sqrt((2*float64(m)+3)/(2*float64(m)+2)) * s * lamMM
}

// dLambdaDTheta evaluates the theta derivative of lambda_lm from the values
// of lambda_lm and lambda_(l-1)m:
// d lambda_lm / d theta = (l x lambda_lm - c_lm lambda_(l-1)m) / s,
// c_lm = sqrt((2l+1)/(2l-1) (l^2-m^2)).
func dLambdaDTheta(l, m int, x, s, lam, lam1 float64) float64 {
	fl, fm := float64(l), float64(m)
	c := math.Sqrt((2*fl + 1) / (2*fl - 1) * (fl*fl - fm*fm))
	return (fl*x*lam - c*lam1) / s
}
