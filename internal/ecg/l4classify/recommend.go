package l4classify

// Heart-rate bands used for advice, in bpm.
const (
	slowBelow = 60
	fastAbove = 100
)

// Recommend returns user-facing advice for a result.
func Recommend(label Class, confidence float64, heartRateBPM int) []string {
	var recs []string
	inRange := heartRateBPM >= slowBelow && heartRateBPM <= fastAbove

	switch {
	case heartRateBPM < slowBelow:
		recs = append(recs, "Slow heart rate (below 60 BPM): consult a doctor if you have symptoms.")
	case heartRateBPM > fastAbove:
		recs = append(recs, "Fast heart rate (above 100 BPM): rest and relax before measuring again.")
	default:
		recs = append(recs, "Heart rate is within the normal range.")
	}

	switch label {
	case Normal:
		if inRange {
			recs = append(recs, "ECG signal looks normal. Keep monitoring your health.")
		}
	case Supraventricular:
		recs = append(recs, "Supraventricular irregular beats detected. Keep monitoring and consult a doctor.")
	case Ventricular:
		recs = append(recs, "Ventricular irregular beats detected. Consult a doctor immediately.")
	case Paced:
		recs = append(recs, "Paced rhythm detected. This is expected if you have a pacemaker.")
	case Other:
		if inRange {
			recs = append(recs, "The result is inconclusive. Measure again to confirm.")
		} else {
			recs = append(recs, "An abnormality was detected. Consult a doctor.")
		}
	}

	if confidence < OtherFloor {
		recs = append(recs, "Low confidence. Measure again for a more reliable result.")
	}
	return recs
}
