// Package coords converts British National Grid (OSGB36, EPSG:27700)
// eastings/northings into WGS-84 (EPSG:4326) longitude/latitude pairs, the
// transform every NPTG/NaPTAN/TNDS track point goes through before it is
// usable as GeoJSON.
package coords

import "math"

// airyA and airyB are the semi-major and semi-minor axes of the Airy 1830
// ellipsoid OSGB36 is defined on.
const (
	airyA = 6377563.396
	airyB = 6356256.909
)

// National Grid true origin and scale factor.
const (
	n0        = -100000.0
	e0        = 400000.0
	f0        = 0.9996012717
	phi0Deg   = 49.0
	lambda0Deg = -2.0
)

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }

// gridToLatLon converts OSGB36 easting/northing to OSGB36 latitude/
// longitude (radians), via the standard Ordnance Survey iterative
// inverse transverse Mercator projection (see OS document "A guide to
// coordinate systems in Great Britain", Annexe C).
func gridToLatLon(easting, northing float64) (lat, lon float64) {
	a := airyA
	b := airyB
	e2 := 1 - (b*b)/(a*a)
	n := (a - b) / (a + b)

	phi0 := deg2rad(phi0Deg)
	lambda0 := deg2rad(lambda0Deg)

	phi := phi0
	m := 0.0
	for {
		phi = (northing-n0-m)/(a*f0) + phi
		ma := (1 + n + (5.0/4.0)*n*n + (5.0/4.0)*n*n*n) * (phi - phi0)
		mb := (3*n + 3*n*n + (21.0/8.0)*n*n*n) * math.Sin(phi-phi0) * math.Cos(phi+phi0)
		mc := ((15.0/8.0)*n*n + (15.0/8.0)*n*n*n) * math.Sin(2*(phi-phi0)) * math.Cos(2*(phi+phi0))
		md := (35.0 / 24.0) * n * n * n * math.Sin(3*(phi-phi0)) * math.Cos(3*(phi+phi0))
		m = b * f0 * (ma - mb + mc - md)

		if math.Abs(northing-n0-m) < 0.00001 {
			break
		}
	}

	sinPhi := math.Sin(phi)
	cosPhi := math.Cos(phi)
	tanPhi := math.Tan(phi)

	nu := a * f0 / math.Sqrt(1-e2*sinPhi*sinPhi)
	rho := a * f0 * (1 - e2) / math.Pow(1-e2*sinPhi*sinPhi, 1.5)
	eta2 := nu/rho - 1

	tanPhi2 := tanPhi * tanPhi
	tanPhi4 := tanPhi2 * tanPhi2
	secPhi := 1 / cosPhi

	viiD := tanPhi / (2 * rho * nu)
	viiiD := tanPhi / (24 * rho * math.Pow(nu, 3)) * (5 + 3*tanPhi2 + eta2 - 9*eta2*tanPhi2)
	ixD := tanPhi / (720 * rho * math.Pow(nu, 5)) * (61 + 90*tanPhi2 + 45*tanPhi4)

	xD := secPhi / nu
	xiD := secPhi / (6 * math.Pow(nu, 3)) * (nu/rho + 2*tanPhi2)
	xiiD := secPhi / (120 * math.Pow(nu, 5)) * (5 + 28*tanPhi2 + 24*tanPhi4)
	xiiaD := secPhi / (5040 * math.Pow(nu, 7)) * (61 + 662*tanPhi2 + 1320*tanPhi4 + 720*tanPhi4*tanPhi2)

	de := easting - e0

	phiOut := phi - viiD*de*de + viiiD*math.Pow(de, 4) - ixD*math.Pow(de, 6)
	lambdaOut := lambda0 + xD*de - xiD*math.Pow(de, 3) + xiiD*math.Pow(de, 5) - xiiaD*math.Pow(de, 7)

	return phiOut, lambdaOut
}

// helmertOSGB36ToWGS84 applies the seven-parameter Helmert datum shift
// published by the Ordnance Survey for OSGB36 -> WGS84 (small-angle
// approximation, accurate to within a few metres, which is sufficient
// for stop-level geocoding).
func helmertOSGB36ToWGS84(lat, lon float64) (float64, float64) {
	const (
		tx = 446.448
		ty = -125.157
		tz = 542.060
		s  = -20.4894 * 1e-6
		rx = 0.1502 / 3600 * math.Pi / 180
		ry = 0.2470 / 3600 * math.Pi / 180
		rz = 0.8421 / 3600 * math.Pi / 180
	)

	a1, b1 := airyA, airyB
	e2 := 1 - (b1*b1)/(a1*a1)
	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	sinLon := math.Sin(lon)
	cosLon := math.Cos(lon)

	nu := a1 / math.Sqrt(1-e2*sinLat*sinLat)
	h := 0.0

	x1 := (nu + h) * cosLat * cosLon
	y1 := (nu + h) * cosLat * sinLon
	z1 := ((1-e2)*nu + h) * sinLat

	x2 := tx + (1+s)*x1 + (-rz)*y1 + (ry)*z1
	y2 := ty + (rz)*x1 + (1+s)*y1 + (-rx)*z1
	z2 := tz + (-ry)*x1 + (rx)*y1 + (1+s)*z1

	// WGS84 ellipsoid.
	const (
		wgsA = 6378137.000
		wgsB = 6356752.3141
	)
	e2w := 1 - (wgsB*wgsB)/(wgsA*wgsA)
	p := math.Sqrt(x2*x2 + y2*y2)
	latOut := math.Atan2(z2, p*(1-e2w))
	for i := 0; i < 10; i++ {
		nuOut := wgsA / math.Sqrt(1-e2w*math.Sin(latOut)*math.Sin(latOut))
		latOut = math.Atan2(z2+e2w*nuOut*math.Sin(latOut), p)
	}
	lonOut := math.Atan2(y2, x2)

	return latOut, lonOut
}

// Transform converts an OSGB36 National Grid easting/northing pair into
// WGS-84 longitude/latitude, in that order (longitude-first, matching
// GeoJSON coordinate order).
func Transform(easting, northing float64) (lon, lat float64) {
	latRad, lonRad := gridToLatLon(easting, northing)
	latOut, lonOut := helmertOSGB36ToWGS84(latRad, lonRad)
	return rad2deg(lonOut), rad2deg(latOut)
}

// IsMissing reports whether a raw coordinate string from NaPTAN/NPTG XML
// represents an absent value: either truly empty, or the sentinel zero
// value the source data uses to mean "not recorded".
func IsMissing(value string) bool {
	return value == "" || value == "0.000000000" || value == "0"
}
