/*package healpix is the thin spherical-pixelization collaborator of the
pipeline: RING-ordered equal-area pixel geometry, naive (direct summation)
scalar and spin-2 harmonic transforms, and the pixel window. The transforms
are exact in their summations and rely on the ring quadrature for forward
accuracy, so they are meant for band limits comfortably below the pixel
scale.*/
package healpix

import (
	"math"

	"golang.org/x/exp/rand"

	"github.com/mehdirezaie/flask/report"
)

// Pixelization is a RING-ordered equal-area pixelization at resolution
// Nside. Pixel count is 12 Nside^2.
type Pixelization struct {
	Nside int
	rings []Ring
}

// Ring describes one isolatitude ring: the index of its first pixel, the
// pixel count, cos(theta) of its centers, and the azimuth of pixel 0.
type Ring struct {
	First, Count int
	Z, Phi0      float64
}

// New creates a Pixelization. Nside must be a power of two.
func New(nside int) (Pixelization, error) {
	if nside < 1 || nside&(nside-1) != 0 {
		return Pixelization{}, report.Errorf(report.ConfigError,
			"NSIDE must be a positive power of two, got %d", nside)
	}
	p := Pixelization{Nside: nside}
	ns := float64(nside)
	npix := 12 * nside * nside

	for i := 1; i <= 4*nside-1; i++ {
		var r Ring
		switch {
		case i < nside: // north polar cap
			r.Count = 4 * i
			r.First = 2 * i * (i - 1)
			r.Z = 1 - float64(i*i)/(3*ns*ns)
			r.Phi0 = math.Pi / (4 * float64(i))
		case i <= 3*nside: // equatorial belt
			r.Count = 4 * nside
			r.First = 2*nside*(nside-1) + (i-nside)*4*nside
			r.Z = 4.0/3.0 - 2*float64(i)/(3*ns)
			s := (i - nside + 1) % 2
			r.Phi0 = float64(s) * math.Pi / (4 * ns)
		default: // south polar cap
			k := 4*nside - i
			r.Count = 4 * k
			r.First = npix - 2*k*(k+1)
			r.Z = -(1 - float64(k*k)/(3*ns*ns))
			r.Phi0 = math.Pi / (4 * float64(k))
		}
		p.rings = append(p.rings, r)
	}
	return p, nil
}

// Npix returns the number of pixels.
func (p Pixelization) Npix() int { return 12 * p.Nside * p.Nside }

// Rings returns the ring table, north to south.
func (p Pixelization) Rings() []Ring { return p.rings }

// SolidAngle returns the solid angle of one pixel in steradians.
func (p Pixelization) SolidAngle() float64 {
	return 4 * math.Pi / float64(p.Npix())
}

// RingOf returns the index into Rings() of the ring containing pixel pix.
func (p Pixelization) RingOf(pix int) int {
	lo, hi := 0, len(p.rings)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if p.rings[mid].First <= pix {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// Center returns the (theta, phi) coordinates of the center of pixel pix.
func (p Pixelization) Center(pix int) (theta, phi float64) {
	r := p.rings[p.RingOf(pix)]
	j := pix - r.First
	return math.Acos(r.Z), wrapPhi(r.Phi0 + float64(j)*2*math.Pi/float64(r.Count))
}

// RandInPix draws an approximately uniform position inside pixel pix: z
// uniform in the ring band, phi uniform in the pixel azimuth interval. The
// exact pixel boundaries are not reproduced, only the correct ring and
// azimuth cell.
func (p Pixelization) RandInPix(gen *rand.Rand, pix int) (theta, phi float64) {
	ri := p.RingOf(pix)
	r := p.rings[ri]

	zhi, zlo := 1.0, -1.0
	if ri > 0 {
		zhi = (r.Z + p.rings[ri-1].Z) / 2
	}
	if ri < len(p.rings)-1 {
		zlo = (r.Z + p.rings[ri+1].Z) / 2
	}
	z := zlo + gen.Float64()*(zhi-zlo)

	j := pix - r.First
	dphi := 2 * math.Pi / float64(r.Count)
	phiMid := r.Phi0 + float64(j)*dphi
	phi = phiMid + (gen.Float64()-0.5)*dphi

	return math.Acos(z), wrapPhi(phi)
}

func wrapPhi(phi float64) float64 {
	phi = math.Mod(phi, 2*math.Pi)
	if phi < 0 {
		phi += 2 * math.Pi
	}
	return phi
}
