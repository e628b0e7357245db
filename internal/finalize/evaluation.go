package finalize

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"screening-platform/internal/screening"
)

// ParseEvaluation reads the structured parts of a provider summary. Providers
// return either a JSON object or "Label: value" lines. It returns nil when the
// summary has neither shape; the raw summary is always kept by the caller.
func ParseEvaluation(summary string) *screening.Evaluation {
	s := strings.TrimSpace(summary)
	if s == "" {
		return nil
	}
	if strings.HasPrefix(s, "{") {
		if ev := parseJSON(s); ev != nil {
			return ev
		}
	}
	return parseLines(s)
}

type jsonEvaluation struct {
	Experience        string          `json:"experience"`
	Availability      string          `json:"availability"`
	SoftSkills        json.RawMessage `json:"softSkills"`
	SoftSkillsSnake   json.RawMessage `json:"soft_skills"`
	RoleNotes         string          `json:"roleNotes"`
	RoleNotesSnake    string          `json:"role_notes"`
	RoleSpecific      string          `json:"roleSpecific"`
	Score             json.RawMessage `json:"score"`
	OverallScore      json.RawMessage `json:"overallScore"`
	OverallScoreSnake json.RawMessage `json:"overall_score"`
}

func parseJSON(s string) *screening.Evaluation {
	var raw jsonEvaluation
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil
	}
	ev := &screening.Evaluation{
		Experience:   strings.TrimSpace(raw.Experience),
		Availability: strings.TrimSpace(raw.Availability),
		RoleNotes:    strings.TrimSpace(firstNonEmpty(raw.RoleNotes, raw.RoleNotesSnake, raw.RoleSpecific)),
	}
	for _, r := range []json.RawMessage{raw.SoftSkills, raw.SoftSkillsSnake} {
		if skills := decodeSkills(r); len(skills) > 0 {
			ev.SoftSkills = skills
			break
		}
	}
	for _, r := range []json.RawMessage{raw.Score, raw.OverallScore, raw.OverallScoreSnake} {
		if f, ok := decodeScore(r); ok {
			ev.Score = &f
			break
		}
	}
	if empty(ev) {
		return nil
	}
	return ev
}

func decodeSkills(r json.RawMessage) []string {
	if len(r) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(r, &list); err == nil {
		return cleanList(list)
	}
	var one string
	if err := json.Unmarshal(r, &one); err == nil {
		return splitList(one)
	}
	return nil
}

func decodeScore(r json.RawMessage) (float64, bool) {
	if len(r) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(r, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(r, &s); err == nil {
		return parseScore(s)
	}
	return 0, false
}

var linePattern = regexp.MustCompile(`^\s*[-*]?\s*([A-Za-z][A-Za-z \-]*?)\s*:\s*(.+)$`)

func parseLines(s string) *screening.Evaluation {
	ev := &screening.Evaluation{}
	for _, line := range strings.Split(s, "\n") {
		m := linePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		label := strings.ToLower(strings.TrimSpace(m[1]))
		value := strings.TrimSpace(m[2])
		switch label {
		case "experience", "work experience":
			ev.Experience = value
		case "availability", "schedule":
			ev.Availability = value
		case "soft skills", "soft-skills", "skills":
			ev.SoftSkills = splitList(value)
		case "role notes", "role-specific", "role specific", "notes":
			ev.RoleNotes = value
		case "score", "overall score", "rating":
			if f, ok := parseScore(value); ok {
				ev.Score = &f
			}
		}
	}
	if empty(ev) {
		return nil
	}
	return ev
}

var scorePattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:/\s*(\d+(?:\.\d+)?))?`)

// parseScore accepts "7", "7.5", "8/10" and normalizes x/y onto a 0..10 scale.
func parseScore(s string) (float64, bool) {
	m := scorePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if m[2] != "" {
		den, err := strconv.ParseFloat(m[2], 64)
		if err != nil || den == 0 {
			return 0, false
		}
		v = v / den * 10
	}
	return v, true
}

func splitList(s string) []string {
	return cleanList(strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }))
}

func cleanList(in []string) []string {
	var out []string
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func empty(ev *screening.Evaluation) bool {
	return ev.Experience == "" && ev.Availability == "" && len(ev.SoftSkills) == 0 && ev.RoleNotes == "" && ev.Score == nil
}
