package store

import (
	"testing"
	"time"

	"github.com/sanspareilsmyn/vitalens/internal/message"
	"github.com/sanspareilsmyn/vitalens/internal/vitals"
)

func TestToRecord(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := message.Report{
		ID:        "6f1c2a4e-8a9b-4c1d-9e2f-0a1b2c3d4e5f",
		SessionID: "cam-7",
		Source:    message.SourceKafka,
		Metrics: vitals.Snapshot{
			Average: vitals.Metrics{BPM: 72.5, HRV: 40, SpO2: 96, Respiration: 14, Systolic: 118, Diastolic: 76},
			Stress:  vitals.StressMild,
		},
		Scores:      vitals.ScoreSet{Activity: 1.9, Sleep: 3, Equilibrium: 0.95, Metabolism: 4.12, Health: 4.5, Relaxation: 5},
		Attributes:  vitals.UserAttributes{Age: 30, Weight: 70, Height: 175},
		Frames:      600,
		CompletedAt: at,
	}

	rec := toRecord(r)
	if rec.ID != r.ID || rec.SessionID != "cam-7" || rec.Source != message.SourceKafka || rec.Frames != 600 {
		t.Errorf("identity fields not copied: %+v", rec)
	}
	if rec.AvgBPM != 72.5 || rec.AvgDiastolic != 76 || rec.StressLevel != vitals.StressMild {
		t.Errorf("averages not copied: %+v", rec)
	}
	if rec.MetabolismScore != 4.12 || rec.RelaxationScore != 5 {
		t.Errorf("scores not copied: %+v", rec)
	}
	if rec.Height != 175 || !rec.CompletedAt.Equal(at) {
		t.Errorf("attributes not copied: %+v", rec)
	}
	if (ReportRecord{}).TableName() != "vitalens_reports" {
		t.Error("unexpected table name")
	}
}
