package core

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfidenceTierBoundaries(t *testing.T) {
	cases := []struct {
		pct        float64
		tier       string
		assessment string
	}{
		{100, TierVeryHigh, "Very High Confidence Assessment"},
		{95.0, TierVeryHigh, "Very High Confidence Assessment"},
		{94.9, TierHigh, "High Confidence Assessment"},
		{85.0, TierHigh, "High Confidence Assessment"},
		{84.99, TierModerate, "Moderate Confidence Assessment"},
		{70.0, TierModerate, "Moderate Confidence Assessment"},
		{50.0, TierLow, "Low Confidence Assessment"},
		{49.9, TierInconclusive, "Inconclusive Assessment"},
		{0, TierInconclusive, "Inconclusive Assessment"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.tier, ConfidenceTier(tc.pct), "pct=%v", tc.pct)
		assert.Equal(t, tc.assessment, ConfidenceAssessment(tc.pct), "pct=%v", tc.pct)
	}
}

func TestFormatPredictions(t *testing.T) {
	preds := FormatPredictions([]LabelScore{
		{Index: 4, Label: "FU-ringworm", Probability: 0.912},
		{Index: 6, Label: "VI-chickenpox", Probability: 0.05},
		{Index: 1, Label: "BA-impetigo", Probability: 0.02},
	})

	require.Len(t, preds, 3)
	assert.Equal(t, "FU-ringworm", preds[0].Condition)
	assert.InDelta(t, 91.2, preds[0].Confidence, 1e-9)
	assert.Equal(t, TierHigh, preds[0].ConfidenceLevel)
	assert.Equal(t, "High Confidence Assessment", preds[0].Assessment)
	assert.Equal(t, TierInconclusive, preds[2].ConfidenceLevel)
}

func TestBuildReport(t *testing.T) {
	preds := FormatPredictions([]LabelScore{
		{Label: "FU-ringworm", Probability: 0.9123},
		{Label: "VI-chickenpox", Probability: 0.0551},
		{Label: "BA-impetigo", Probability: 0.0126},
	})

	report := BuildReport("/uploads/20240101_120000_abc_rash.jpg", preds)

	expected := strings.Join([]string{
		"DERMATOLOGICAL ANALYSIS REPORT",
		"═══════════════════════════════",
		"Image Reference: 20240101_120000_abc_rash.jpg",
		"",
		"PRIMARY ASSESSMENT",
		"────────────────",
		"Condition: FU-ringworm",
		"Confidence: 91.2%",
		"Assessment: High Confidence Assessment",
		"",
		"DIFFERENTIAL CONSIDERATIONS",
		"─────────────────────────",
		"1. VI-chickenpox",
		"   • Confidence: 5.5%",
		"   • Assessment: Inconclusive Assessment",
		"2. BA-impetigo",
		"   • Confidence: 1.3%",
		"   • Assessment: Inconclusive Assessment",
		"",
	}, "\n")
	assert.Equal(t, expected, report)

	assert.Equal(t, report, BuildReport("s3://bucket/uploads/20240101_120000_abc_rash.jpg", preds))
}

func TestPatientGuidanceAndMetadata(t *testing.T) {
	guidance := PatientGuidance()
	assert.Contains(t, guidance.Disclaimer, "IMPORTANT MEDICAL DISCLAIMER")
	assert.Len(t, guidance.NextSteps, 5)

	meta := NewReportMetadata(time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC))
	assert.Equal(t, "DERM-20240305-140709", meta.ReportID)
	assert.Equal(t, AnalysisType, meta.AnalysisType)
}
