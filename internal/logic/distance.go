package logic

import "math"

// EstimateDistance converts an RSSI reading to an approximate distance in
// metres using the log-distance path loss model. measuredPower is the RSSI at
// one metre; envFactor is the path loss exponent (2 in free space).
func EstimateDistance(measuredPower, rssi int, envFactor float64) float64 {
	if envFactor <= 0 {
		return math.NaN()
	}
	return math.Pow(10, float64(measuredPower-rssi)/(10*envFactor))
}
