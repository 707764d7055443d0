// SPDX-License-Identifier: MIT

// Package timeofday decides whether it is currently day or night at a
// location and filters videos accordingly.
package timeofday

import (
	"math"
	"time"
)

// Period is the classifier result.
type Period int

const (
	Unknown Period = iota
	Day
	Night
)

func (p Period) String() string {
	switch p {
	case Day:
		return "day"
	case Night:
		return "night"
	default:
		return "unknown"
	}
}

// Official zenith for sunrise/sunset including refraction.
const zenith = 90.8333

const minutesPerDay = 24 * 60

type event int

const (
	rising event = iota
	setting
)

// Classify returns Day or Night for the given location at now, in the time
// zone of now. Without a location the result is Unknown. Polar day and polar
// night saturate to Day and Night.
func Classify(lat, lon float64, known bool, now time.Time) Period {
	if !known || !validCoordinates(lat, lon) {
		return Unknown
	}

	sunrise, sunset, state := sunTimes(lat, lon, now)
	switch state {
	case polarDay:
		return Day
	case polarNight:
		return Night
	case inconclusive:
		return Unknown
	}

	minute := now.Hour()*60 + now.Minute()
	if isBetween(minute, sunrise, sunset) {
		return Day
	}
	return Night
}

// SunTimes returns sunrise and sunset as minutes after local midnight.
// ok is false when the sun does not rise or set that day.
func SunTimes(lat, lon float64, now time.Time) (sunrise, sunset int, ok bool) {
	if !validCoordinates(lat, lon) {
		return 0, 0, false
	}
	sunrise, sunset, state := sunTimes(lat, lon, now)
	return sunrise, sunset, state == normal
}

type solarState int

const (
	normal solarState = iota
	polarDay
	polarNight
	inconclusive
)

func sunTimes(lat, lon float64, now time.Time) (int, int, solarState) {
	_, offsetSeconds := now.Zone()
	offsetHours := float64(offsetSeconds) / 3600

	rise, riseState := eventMinute(rising, lat, lon, now.YearDay(), offsetHours)
	set, setState := eventMinute(setting, lat, lon, now.YearDay(), offsetHours)

	switch {
	case riseState == normal && setState == normal:
		return rise, set, normal
	case riseState == polarNight || setState == polarNight:
		return 0, 0, polarNight
	case riseState == polarDay || setState == polarDay:
		return 0, minutesPerDay - 1, polarDay
	default:
		return 0, 0, inconclusive
	}
}

// eventMinute runs the NOAA sunrise/sunset approximation for one event.
func eventMinute(ev event, lat, lon float64, dayOfYear int, offsetHours float64) (int, solarState) {
	lngHour := lon / 15

	base := 6.0
	if ev == setting {
		base = 18.0
	}
	t := float64(dayOfYear) + (base-lngHour)/24

	// Sun's mean anomaly and true longitude
	m := 0.9856*t - 3.289
	l := normalize(m+1.916*sinDeg(m)+0.020*sinDeg(2*m)+282.634, 360)

	// Right ascension, in the same quadrant as l
	ra := normalize(atanDeg(0.91764*tanDeg(l)), 360)
	lQuadrant := math.Floor(l/90) * 90
	raQuadrant := math.Floor(ra/90) * 90
	ra = (ra + lQuadrant - raQuadrant) / 15

	sinDec := 0.39782 * sinDeg(l)
	cosDec := math.Cos(math.Asin(sinDec))

	cosH := (cosDeg(zenith) - sinDec*sinDeg(lat)) / (cosDec * cosDeg(lat))
	if math.IsNaN(cosH) || math.IsInf(cosH, 0) {
		return 0, inconclusive
	}
	if cosH > 1 {
		return 0, polarNight
	}
	if cosH < -1 {
		return 0, polarDay
	}

	var h float64
	if ev == rising {
		h = 360 - acosDeg(cosH)
	} else {
		h = acosDeg(cosH)
	}
	h /= 15

	localMean := h + ra - 0.06571*t - 6.622
	ut := normalize(localMean-lngHour, 24)
	local := normalize(ut+offsetHours, 24)

	minute := int(math.Round(local * 60))
	return minute % minutesPerDay, normal
}

func isBetween(minute, start, end int) bool {
	if start <= end {
		return minute >= start && minute < end
	}
	// Sunset wrapped past midnight after the offset conversion.
	return minute >= start || minute < end
}

func validCoordinates(lat, lon float64) bool {
	return !math.IsNaN(lat) && !math.IsNaN(lon) &&
		lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func normalize(v, max float64) float64 {
	v = math.Mod(v, max)
	if v < 0 {
		v += max
	}
	return v
}

func rad(d float64) float64    { return d * math.Pi / 180 }
func deg(r float64) float64    { return r * 180 / math.Pi }
func sinDeg(d float64) float64 { return math.Sin(rad(d)) }
func cosDeg(d float64) float64 { return math.Cos(rad(d)) }
func tanDeg(d float64) float64 { return math.Tan(rad(d)) }
func atanDeg(x float64) float64 {
	return deg(math.Atan(x))
}
func acosDeg(x float64) float64 {
	return deg(math.Acos(x))
}
