package vcomp

import "math"

// sdfAntialiasWidth controls the smoothstep transition width in pixels.
const sdfAntialiasWidth = 0.7

// roundedRectCoverage returns the anti-aliased coverage in [0, 1] of the
// pixel centred at (px, py) by a w×h rectangle anchored at the origin with
// corners of radius r. The radius is clamped to half the shorter side.
func roundedRectCoverage(px, py, w, h, r float64) float64 {
	halfW, halfH := w/2, h/2
	r = math.Min(math.Max(r, 0), math.Min(halfW, halfH))
	return smoothstepCoverage(sdfRRect(px, py, halfW, halfH, halfW, halfH, r))
}

// sdfRRect computes the signed distance from a point to a rounded rectangle
// centred at (cx, cy). Negative values are inside.
func sdfRRect(px, py, cx, cy, halfW, halfH, cornerRadius float64) float64 {
	dx := math.Abs(px-cx) - halfW + cornerRadius
	dy := math.Abs(py-cy) - halfH + cornerRadius

	outside := math.Hypot(math.Max(dx, 0), math.Max(dy, 0))
	inside := math.Min(math.Max(dx, dy), 0)

	return outside + inside - cornerRadius
}

// smoothstepCoverage converts a signed distance to coverage with a Hermite
// smoothstep over [-sdfAntialiasWidth, +sdfAntialiasWidth].
func smoothstepCoverage(sdf float64) float64 {
	if sdf >= sdfAntialiasWidth {
		return 0
	}
	if sdf <= -sdfAntialiasWidth {
		return 1
	}
	t := (sdf + sdfAntialiasWidth) / (2 * sdfAntialiasWidth)
	return 1 - (t * t * (3 - 2*t))
}
