package vitals

import "math"

const (
	maxScore = 5

	// breathing at or below this rate makes the relaxation ratio meaningless
	minRelaxationRespiration = 7
)

// Scores derives the six wellness scores from final averages.
func Scores(m Metrics, u UserAttributes) ScoreSet {
	return ScoreSet{
		Activity:    Activity(m.BPM, u.Age),
		Sleep:       Sleep(m.HRV, m.Respiration),
		Equilibrium: Equilibrium(m.HRV, m.Systolic, m.Diastolic),
		Metabolism:  Metabolism(u.Weight, u.Height, u.Age),
		Health:      Health(m.SpO2, m.BPM, m.Systolic),
		Relaxation:  Relaxation(m.HRV, m.Respiration),
	}
}

// Activity scores heart rate against the age-predicted maximum.
func Activity(bpm, age float64) float64 {
	maxHR := 220 - age
	if maxHR <= 0 {
		return 0
	}
	met := (bpm / maxHR) * 15
	return clampScore(met / 3)
}

func Sleep(hrv, respiration float64) float64 {
	return clampScore((0.6*(hrv/100) + 0.6*(respiration/30)) * 5)
}

// Equilibrium is 0 while either pressure value is unavailable.
func Equilibrium(hrv, systolic, diastolic float64) float64 {
	if systolic == 0 || diastolic == 0 {
		return 0
	}
	return clampScore(hrv / (math.Abs(systolic-diastolic) + 1) * 2)
}

// Metabolism uses the Mifflin-St Jeor basal rate for men.
func Metabolism(weight, height, age float64) float64 {
	bmr := 10*weight + 6.25*height - 5*age + 5
	return clampScore(bmr / 2000 * 5)
}

func Health(spo2, bpm, systolic float64) float64 {
	if bpm == 0 || systolic == 0 {
		return 0
	}
	return clampScore((spo2/100 + 60/bpm + 120/systolic) / 3 * 5)
}

func Relaxation(hrv, respiration float64) float64 {
	if respiration <= minRelaxationRespiration {
		return 0
	}
	return clampScore(hrv / respiration * 3)
}

// clampScore bounds v to [0,5] rounded to two decimals. NaN maps to 0.
func clampScore(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return Round2(math.Max(0, math.Min(maxScore, v)))
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
