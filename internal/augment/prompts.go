package augment

import (
	"strings"
	"text/template"
)

const systemPrompt = "You are a specialized dermatology AI assistant. Provide structured, clear, and professional analysis using bullet points."

type analysisPromptFields struct {
	Report string
}

const analysisPrompt = `
Please provide a detailed dermatological analysis following this exact structure:

1. CONDITION OVERVIEW
   • [Provide a clear, detailed description of the condition]
   • [List key characteristics and typical presentation]
   • [Include common affected areas and populations]

2. KEY SYMPTOMS
   • [List primary symptoms in order of significance]
   • [Describe how symptoms typically present]
   • [Include any characteristic patterns or progression]

3. TREATMENT APPROACHES
   • [Specify first-line treatments and medications]
   • [List alternative treatment options]
   • [Include relevant self-care measures]
   • [Mention typical treatment duration]

4. PREVENTION GUIDELINES
   • [List specific preventive measures]
   • [Include lifestyle modifications]
   • [Specify risk factors to avoid]
   • [Recommend protective measures]

5. MEDICAL ATTENTION INDICATORS
   • [List urgent warning signs]
   • [Specify when to seek immediate care]
   • [Include complications to watch for]

Analysis Request:
{{ .Report }}

Format each section with bullet points (•) for clear readability.
Ensure each point is concise but informative.
Use medical terminology with layman explanations where needed.
`

var analysisPromptTmpl = template.Must(template.New("analysisPrompt").Parse(analysisPrompt))

func buildPrompt(report string) (string, error) {
	var sb strings.Builder
	if err := analysisPromptTmpl.Execute(&sb, analysisPromptFields{Report: report}); err != nil {
		return "", err
	}
	return sb.String(), nil
}
