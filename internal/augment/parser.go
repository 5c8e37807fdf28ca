package augment

import (
	"regexp"
	"strings"
	"unicode"

	"dermai-backend/pkg/api"
)

const Bullet = "•"

type section int

const (
	sectionNone section = iota
	sectionOverview
	sectionSymptoms
	sectionTreatment
	sectionPrevention
	sectionWarning
)

var headers = map[string]section{
	"CONDITION OVERVIEW":           sectionOverview,
	"KEY SYMPTOMS":                 sectionSymptoms,
	"TREATMENT APPROACHES":         sectionTreatment,
	"PREVENTION GUIDELINES":        sectionPrevention,
	"MEDICAL ATTENTION INDICATORS": sectionWarning,
}

var headerRe = regexp.MustCompile(`^(?:\d+\s*[.)]\s*)?(CONDITION OVERVIEW|KEY SYMPTOMS|TREATMENT APPROACHES|PREVENTION GUIDELINES|MEDICAL ATTENTION INDICATORS)\b`)

var bulletMarkers = []string{"•", "*", "-", "·", "–", "—"}

// normalizeBullet rewrites a leading bullet marker to •. Markers inside the
// line, including emphasis such as "* **Term**: text", are left alone.
func normalizeBullet(line string) (string, bool) {
	for _, m := range bulletMarkers {
		if !strings.HasPrefix(line, m) {
			continue
		}
		after := strings.TrimPrefix(line, m)
		// A star opens a bullet only when followed by whitespace; "**Bold**" and
		// "*italic*" lines are emphasis.
		if m == "*" && (after == "" || !unicode.IsSpace(rune(after[0]))) {
			return line, false
		}
		return Bullet + " " + strings.TrimSpace(after), true
	}
	return line, false
}

func matchHeader(line string) section {
	cleaned := strings.TrimLeft(line, "# ")
	cleaned = strings.ReplaceAll(cleaned, "*", "")
	cleaned = strings.ReplaceAll(cleaned, "_", "")
	cleaned = strings.ToUpper(strings.TrimSpace(cleaned))

	m := headerRe.FindStringSubmatch(cleaned)
	if m == nil {
		return sectionNone
	}
	return headers[m[1]]
}

// ParseSections partitions an LLM reply into the five analysis sections.
// Only bullet lines under a recognized header are kept.
func ParseSections(text string) api.DetailedAnalysis {
	out := api.DetailedAnalysis{
		Overview:   []string{},
		Symptoms:   []string{},
		Treatment:  []string{},
		Prevention: []string{},
		Warning:    []string{},
	}

	current := sectionNone
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if bullet, ok := normalizeBullet(line); ok {
			item := strings.TrimSpace(strings.TrimPrefix(bullet, Bullet))
			if item == "" {
				continue
			}
			switch current {
			case sectionOverview:
				out.Overview = append(out.Overview, item)
			case sectionSymptoms:
				out.Symptoms = append(out.Symptoms, item)
			case sectionTreatment:
				out.Treatment = append(out.Treatment, item)
			case sectionPrevention:
				out.Prevention = append(out.Prevention, item)
			case sectionWarning:
				out.Warning = append(out.Warning, item)
			}
			continue
		}

		if s := matchHeader(line); s != sectionNone {
			current = s
		}
	}

	return out
}
