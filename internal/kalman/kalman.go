// Package kalman implements the 7-dimensional constant-velocity box filter
// the tracker (component C) uses to predict and update each hypothesis:
// state (x, y, area, aspectRatio, vx, vy, vArea) observing (x, y, area,
// aspectRatio).
//
// This is a specialization of the teacher's generic
// internal/filterpy.KalmanFilter (itself a Go port of filterpy's
// KalmanFilter) to the fixed 7-state/4-measurement SORT box model described
// built directly on gonum matrices the same way.
package kalman

import "gonum.org/v1/gonum/mat"

const (
	dimX = 7
	dimZ = 4
)

// BoxFilter is a Kalman filter over the state
// (x, y, area, aspectRatio, vx, vy, vArea).
type BoxFilter struct {
	X *mat.Dense // state vector (7,1)
	P *mat.Dense // covariance (7,7)
	F *mat.Dense // state transition (7,7)
	H *mat.Dense // measurement matrix (4,7)
	R *mat.Dense // measurement noise (4,4)
	Q *mat.Dense // process noise (7,7)
}

// NewBoxFilter creates a filter initialized at the given measurement
// (x, y, area, aspectRatio), with the process/measurement noise inflation
// described in process noise inflated on velocity components and
// area-velocity; measurement noise inflated (factor 10) on shape
// dimensions; initial covariance inflated (factor 1000) on velocities.
func NewBoxFilter(x, y, area, aspectRatio float64) *BoxFilter {
	f := &BoxFilter{
		X: mat.NewDense(dimX, 1, nil),
		P: mat.NewDense(dimX, dimX, nil),
		F: mat.NewDense(dimX, dimX, nil),
		H: mat.NewDense(dimZ, dimX, nil),
		R: mat.NewDense(dimZ, dimZ, nil),
		Q: mat.NewDense(dimX, dimX, nil),
	}

	// F: identity plus constant-velocity coupling (x += vx, y += vy, area += vArea).
	for i := 0; i < dimX; i++ {
		f.F.Set(i, i, 1.0)
	}
	f.F.Set(0, 4, 1.0) // x += vx
	f.F.Set(1, 5, 1.0) // y += vy
	f.F.Set(2, 6, 1.0) // area += vArea

	// H: observe x, y, area, aspectRatio directly.
	for i := 0; i < dimZ; i++ {
		f.H.Set(i, i, 1.0)
	}

	// R: identity, shape dimensions (area, aspectRatio) inflated x10.
	for i := 0; i < dimZ; i++ {
		f.R.Set(i, i, 1.0)
	}
	f.R.Set(2, 2, 10.0)
	f.R.Set(3, 3, 10.0)

	// Q: identity, velocity components and area-velocity inflated.
	for i := 0; i < dimX; i++ {
		f.Q.Set(i, i, 1.0)
	}
	f.Q.Set(4, 4, 0.01)
	f.Q.Set(5, 5, 0.01)
	f.Q.Set(6, 6, 0.0001) // area-velocity, smallest process noise

	// P: identity scaled x10 overall, velocities further inflated x1000
	// (net x10000), matching the SORT reference initialization.
	for i := 0; i < dimX; i++ {
		f.P.Set(i, i, 10.0)
	}
	f.P.Set(4, 4, 10000.0)
	f.P.Set(5, 5, 10000.0)
	f.P.Set(6, 6, 10000.0)

	f.X.Set(0, 0, x)
	f.X.Set(1, 0, y)
	f.X.Set(2, 0, area)
	f.X.Set(3, 0, aspectRatio)

	return f
}

// Predict steps the filter forward one frame: x = F@x, P = F@P@F' + Q.
// If the step would take the area to zero or below (area + vArea <= 0), the
// area-velocity component is reset to zero before stepping, so the area is
// carried over unchanged. Returns false if the hypothesis has degenerated
// beyond recovery (area still non-positive after the step).
func (f *BoxFilter) Predict() bool {
	if f.X.At(2, 0)+f.X.At(6, 0) <= 0 {
		f.X.Set(6, 0, 0)
	}
	f.step()
	return f.X.At(2, 0) > 0
}

func (f *BoxFilter) step() {
	var xPrior mat.Dense
	xPrior.Mul(f.F, f.X)
	f.X.Copy(&xPrior)

	var fp, pPrior mat.Dense
	fp.Mul(f.F, f.P)
	pPrior.Mul(&fp, f.F.T())
	f.P.Add(&pPrior, f.Q)
}

// Update incorporates a measurement (x, y, area, aspectRatio) using the
// standard Kalman gain update and the simple covariance update
// P = (I - K@H)@P.
func (f *BoxFilter) Update(x, y, area, aspectRatio float64) {
	z := mat.NewDense(dimZ, 1, []float64{x, y, area, aspectRatio})

	var hx mat.Dense
	hx.Mul(f.H, f.X)
	var y_ mat.Dense
	y_.Sub(z, &hx)

	var temp1, s mat.Dense
	temp1.Mul(f.H, f.P)
	s.Mul(&temp1, f.H.T())
	s.Add(&s, f.R)

	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		return // singular innovation covariance: skip the update
	}

	var temp2, k mat.Dense
	temp2.Mul(f.P, f.H.T())
	k.Mul(&temp2, &sInv)

	var kY mat.Dense
	kY.Mul(&k, &y_)
	f.X.Add(f.X, &kY)

	identity := mat.NewDense(dimX, dimX, nil)
	for i := 0; i < dimX; i++ {
		identity.Set(i, i, 1.0)
	}
	var kH, iMinusKH, newP mat.Dense
	kH.Mul(&k, f.H)
	iMinusKH.Sub(identity, &kH)
	newP.Mul(&iMinusKH, f.P)
	f.P.Copy(&newP)
}

// State returns (x, y, area, aspectRatio, vx, vy, vArea).
func (f *BoxFilter) State() (x, y, area, aspectRatio, vx, vy, vArea float64) {
	return f.X.At(0, 0), f.X.At(1, 0), f.X.At(2, 0), f.X.At(3, 0),
		f.X.At(4, 0), f.X.At(5, 0), f.X.At(6, 0)
}
