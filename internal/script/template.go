package script

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind names a template slot. Each kind accepts a fixed set of placeholders.
type Kind string

const (
	KindFirstMessage Kind = "first_message"
	KindSystemPrompt Kind = "system_prompt"
	KindEndMessage   Kind = "end_message"
)

// Placeholder is a {{name}} marker inside a template.
type Placeholder string

const (
	CandidateName Placeholder = "candidateName"
	JobTitle      Placeholder = "jobTitle"
	CompanyName   Placeholder = "companyName"
	RoleName      Placeholder = "role"
	RoleFocus     Placeholder = "roleFocus"
	QuestionList  Placeholder = "questions"
	MaxMinutes    Placeholder = "maxMinutes"
)

var allowed = map[Kind][]Placeholder{
	KindFirstMessage: {CandidateName, JobTitle, CompanyName},
	KindSystemPrompt: {CandidateName, JobTitle, CompanyName, RoleName, RoleFocus, QuestionList, MaxMinutes},
	KindEndMessage:   {CandidateName, CompanyName},
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z]+)\s*\}\}`)

// Render substitutes values into tmpl. It fails when tmpl uses a placeholder
// that kind does not support, so a misconfigured template is caught at load
// time rather than read aloud to a candidate.
func Render(kind Kind, tmpl string, values map[Placeholder]string) (string, error) {
	if err := Check(kind, tmpl); err != nil {
		return "", err
	}
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := placeholderPattern.FindStringSubmatch(m)[1]
		return values[Placeholder(name)]
	}), nil
}

// Check validates that tmpl only uses placeholders supported by kind.
func Check(kind Kind, tmpl string) error {
	ok, known := allowed[kind]
	if !known {
		return fmt.Errorf("script: unknown template kind %q", kind)
	}
	var bad []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(tmpl, -1) {
		if !contains(ok, Placeholder(m[1])) {
			bad = append(bad, m[1])
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("script: %s template uses unsupported placeholders: %s", kind, strings.Join(bad, ", "))
	}
	return nil
}

func contains(list []Placeholder, p Placeholder) bool {
	for _, v := range list {
		if v == p {
			return true
		}
	}
	return false
}
