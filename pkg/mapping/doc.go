// Package mapping converts between a laser line's control quantity (drive
// voltage, scanner output, wave-plate angle) and the optical power it
// produces. It contains:
//
//   - Bounds / EffectiveBounds: intersection of hardware control limits with
//     a configured override
//   - Curve: the samples recorded by a calibration sweep, with explicit
//     missing entries
//   - Interpolated: table lookup over a measured curve
//   - Sigmoid: the parametric model of an acousto-optic modulator response
//   - Estimate / Fit: seeding and least-squares refinement of the sigmoid
//
// A usable mapping is strictly monotonic over the effective control bounds so
// the inverse direction (power to control) is well defined. Zero is exact in
// both directions: control 0 produces power 0 and requesting power 0 yields
// control 0.
package mapping
