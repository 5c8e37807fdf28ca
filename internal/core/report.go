package core

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"dermai-backend/pkg/api"
)

const AnalysisType = "AI-Assisted Dermatological Assessment"

const (
	TierVeryHigh     = "very_high"
	TierHigh         = "high"
	TierModerate     = "moderate"
	TierLow          = "low"
	TierInconclusive = "inconclusive"
)

type confidenceBand struct {
	min        float64
	tier       string
	assessment string
}

// Lower bounds are inclusive.
var confidenceBands = []confidenceBand{
	{95, TierVeryHigh, "Very High Confidence Assessment"},
	{85, TierHigh, "High Confidence Assessment"},
	{70, TierModerate, "Moderate Confidence Assessment"},
	{50, TierLow, "Low Confidence Assessment"},
}

func band(pct float64) (string, string) {
	for _, b := range confidenceBands {
		if pct >= b.min {
			return b.tier, b.assessment
		}
	}
	return TierInconclusive, "Inconclusive Assessment"
}

// ConfidenceTier buckets a percentage in [0, 100].
func ConfidenceTier(pct float64) string {
	tier, _ := band(pct)
	return tier
}

func ConfidenceAssessment(pct float64) string {
	_, assessment := band(pct)
	return assessment
}

func FormatPredictions(scores []LabelScore) []api.Prediction {
	preds := make([]api.Prediction, 0, len(scores))
	for _, s := range scores {
		pct := s.Probability * 100
		tier, assessment := band(pct)
		preds = append(preds, api.Prediction{
			Condition:       s.Label,
			Confidence:      pct,
			Assessment:      assessment,
			ConfidenceLevel: tier,
		})
	}
	return preds
}

// BuildReport renders the plain-text report sent to the LLM. The output only
// depends on the base name of imageRef and the predictions.
func BuildReport(imageRef string, preds []api.Prediction) string {
	var sb strings.Builder

	sb.WriteString("DERMATOLOGICAL ANALYSIS REPORT\n")
	sb.WriteString("═══════════════════════════════\n")
	fmt.Fprintf(&sb, "Image Reference: %s\n\n", filepath.Base(imageRef))

	if len(preds) == 0 {
		return sb.String()
	}

	primary := preds[0]
	sb.WriteString("PRIMARY ASSESSMENT\n")
	sb.WriteString("────────────────\n")
	fmt.Fprintf(&sb, "Condition: %s\n", primary.Condition)
	fmt.Fprintf(&sb, "Confidence: %.1f%%\n", primary.Confidence)
	fmt.Fprintf(&sb, "Assessment: %s\n\n", primary.Assessment)

	sb.WriteString("DIFFERENTIAL CONSIDERATIONS\n")
	sb.WriteString("─────────────────────────\n")
	for i, p := range preds[1:] {
		fmt.Fprintf(&sb, "%d. %s\n   • Confidence: %.1f%%\n   • Assessment: %s\n", i+1, p.Condition, p.Confidence, p.Assessment)
	}

	return sb.String()
}

const disclaimer = `
╔════════════════════ IMPORTANT MEDICAL DISCLAIMER ════════════════════╗
║                                                                      ║
║  • This analysis is provided by an AI system and should NOT         ║
║    replace professional medical evaluation                          ║
║                                                                      ║
║  • The results are intended to assist healthcare providers and      ║
║    should be reviewed by a qualified medical professional           ║
║                                                                      ║
║  • Seek immediate medical attention for severe symptoms or          ║
║    rapid progression of condition                                   ║
║                                                                      ║
╚══════════════════════════════════════════════════════════════════════╝
`

func PatientGuidance() api.PatientGuidance {
	return api.PatientGuidance{
		Disclaimer: disclaimer,
		NextSteps: []string{
			"Schedule a consultation with a dermatologist to review these findings",
			"Document any changes in symptoms or condition progression",
			"Take photos of the affected area for comparison over time",
			"Prepare a list of questions for your healthcare provider",
			"Follow any recommended preventive measures until professional evaluation",
		},
	}
}

func NewReportMetadata(now time.Time) api.ReportMetadata {
	now = now.UTC()
	return api.ReportMetadata{
		Timestamp:    now,
		ReportID:     "DERM-" + now.Format("20060102-150405"),
		AnalysisType: AnalysisType,
	}
}
