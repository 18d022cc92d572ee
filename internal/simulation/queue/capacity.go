package queue

import "math"

// DefaultLostTime is the per-cycle lost time assumed by Capacity, in seconds
const DefaultLostTime = 5.0

// Capacity returns approach capacity in vehicles per hour
func Capacity(saturationFlow, greenTime, cycleLength, lostTime float64) float64 {
	effectiveGreen := math.Max(0, greenTime-lostTime)
	return saturationFlow * effectiveGreen / cycleLength
}

// LevelOfService grades an average delay per vehicle (seconds) from A to F
func LevelOfService(delay float64) string {
	switch {
	case delay <= 10:
		return "A"
	case delay <= 20:
		return "B"
	case delay <= 35:
		return "C"
	case delay <= 55:
		return "D"
	case delay <= 80:
		return "E"
	default:
		return "F"
	}
}
