package vitals

// Stress labels derived from RMSSD.
const (
	StressInsufficient = "insufficient data"
	StressVeryLow      = "very low stress"
	StressMild         = "mild stress"
	StressModerate     = "moderate stress"
	StressHigh         = "high stress"
)

// Metrics is one value per reported vital sign. HRV is SDNN in milliseconds,
// respiration is in breaths per minute and pressures are in mmHg.
type Metrics struct {
	BPM         float64 `json:"bpm"`
	HRV         float64 `json:"hrv"`
	SpO2        float64 `json:"spo2"`
	Respiration float64 `json:"respiration"`
	Systolic    float64 `json:"systolic"`
	Diastolic   float64 `json:"diastolic"`
}

// Snapshot pairs the latest point estimates with the stabilized averages.
type Snapshot struct {
	Current Metrics `json:"current"`
	Average Metrics `json:"average"`
	Stress  string  `json:"stress_level"`
}

// UserAttributes are the subject details the scores depend on.
// Weight is in kilograms and height in centimetres.
type UserAttributes struct {
	Age    float64 `json:"age"`
	Weight float64 `json:"weight"`
	Height float64 `json:"height"`
}

// ScoreSet holds the wellness scores, each in [0,5].
type ScoreSet struct {
	Activity    float64 `json:"activity_score"`
	Sleep       float64 `json:"sleep_score"`
	Equilibrium float64 `json:"equilibrium_score"`
	Metabolism  float64 `json:"metabolism_score"`
	Health      float64 `json:"health_score"`
	Relaxation  float64 `json:"relaxation_score"`
}

// HRVStats summarizes inter-beat intervals, all in seconds.
type HRVStats struct {
	MeanInterval float64
	SDNN         float64
	RMSSD        float64
}

// HeartRate is the output of the heart-rate stage.
type HeartRate struct {
	BPM       float64
	Intervals []float64 // seconds between consecutive peaks
	Peaks     []int
}

// Estimate is everything one frame contributes. Optional values carry a
// Has flag; an absent value must not be folded into any average.
type Estimate struct {
	Ready bool // false until the buffer is long enough to filter

	HeartRate   HeartRate
	HRV         HRVStats
	HasHRV      bool
	Stress      string
	Respiration float64

	Systolic    float64
	Diastolic   float64
	HasPressure bool

	SpO2    float64
	HasSpO2 bool
}
