package script

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Templates are the operator-editable texts of an interview.
type Templates struct {
	FirstMessage string
	SystemPrompt string
	EndMessage   string
}

// DefaultTemplates is used when no templates are configured.
var DefaultTemplates = Templates{
	FirstMessage: "Hi {{candidateName}}, this is the hiring assistant from {{companyName}} calling about your application for {{jobTitle}}. Do you have a few minutes for a short screening interview?",
	SystemPrompt: `You are a friendly phone interviewer for {{companyName}}, screening {{candidateName}} for the {{jobTitle}} position ({{role}}).
Focus on {{roleFocus}}. Keep the call under {{maxMinutes}} minutes.
Ask these questions one at a time and listen to the full answer before moving on:
{{questions}}
Do not make hiring decisions or promises. When you are done, thank the candidate and say goodbye.`,
	EndMessage: "Thank you for your time, {{candidateName}}. The {{companyName}} team will be in touch. Goodbye!",
}

// DefaultEndPhrases end the call when the assistant says them.
var DefaultEndPhrases = []string{"goodbye", "have a great day", "thank you for your time"}

// Context is the candidate/job data an interview is built from.
type Context struct {
	CandidateName string
	JobTitle      string
	Department    string
	CompanyName   string
	MaxDuration   time.Duration
}

// Script is a fully rendered interview.
type Script struct {
	Role         Role
	FirstMessage string
	SystemPrompt string
	EndMessage   string
	Questions    []string
	EndPhrases   []string
}

// Build renders an interview script. It is pure: same inputs, same script.
func Build(ctx Context, tmpl Templates) (Script, error) {
	tmpl = tmpl.withDefaults()
	role := ResolveRole(ctx.JobTitle, ctx.Department)
	questions := role.Questions()

	name := strings.TrimSpace(ctx.CandidateName)
	if name == "" {
		name = "there"
	}
	title := strings.TrimSpace(ctx.JobTitle)
	if title == "" {
		title = "the open position"
	}
	minutes := int(ctx.MaxDuration / time.Minute)
	if minutes < 1 {
		minutes = 1
	}

	values := map[Placeholder]string{
		CandidateName: name,
		JobTitle:      title,
		CompanyName:   ctx.CompanyName,
		RoleName:      string(role),
		RoleFocus:     role.Focus(),
		QuestionList:  numbered(questions),
		MaxMinutes:    strconv.Itoa(minutes),
	}

	first, err := Render(KindFirstMessage, tmpl.FirstMessage, values)
	if err != nil {
		return Script{}, err
	}
	system, err := Render(KindSystemPrompt, tmpl.SystemPrompt, values)
	if err != nil {
		return Script{}, err
	}
	end, err := Render(KindEndMessage, tmpl.EndMessage, values)
	if err != nil {
		return Script{}, err
	}

	return Script{
		Role:         role,
		FirstMessage: first,
		SystemPrompt: system,
		EndMessage:   end,
		Questions:    questions,
		EndPhrases:   append([]string(nil), DefaultEndPhrases...),
	}, nil
}

// Validate checks every configured template against its placeholder set.
func (t Templates) Validate() error {
	t = t.withDefaults()
	for kind, body := range map[Kind]string{
		KindFirstMessage: t.FirstMessage,
		KindSystemPrompt: t.SystemPrompt,
		KindEndMessage:   t.EndMessage,
	} {
		if err := Check(kind, body); err != nil {
			return err
		}
	}
	return nil
}

func (t Templates) withDefaults() Templates {
	if strings.TrimSpace(t.FirstMessage) == "" {
		t.FirstMessage = DefaultTemplates.FirstMessage
	}
	if strings.TrimSpace(t.SystemPrompt) == "" {
		t.SystemPrompt = DefaultTemplates.SystemPrompt
	}
	if strings.TrimSpace(t.EndMessage) == "" {
		t.EndMessage = DefaultTemplates.EndMessage
	}
	return t
}

func numbered(items []string) string {
	var b strings.Builder
	for i, it := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s", i+1, it)
	}
	return b.String()
}
