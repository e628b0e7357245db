package script

import "strings"

// Role is the closed set of interview variants.
type Role string

const (
	RoleServer  Role = "server"
	RoleCook    Role = "cook"
	RoleHost    Role = "host"
	RoleManager Role = "manager"
	RoleGeneral Role = "general"
)

// ordered by precedence: "Kitchen Manager" is a manager, not a cook.
var roleKeywords = []struct {
	role     Role
	keywords []string
}{
	{RoleManager, []string{"manager", "supervisor", "lead", "director", "gm"}},
	{RoleCook, []string{"cook", "chef", "kitchen", "prep", "culinary", "line"}},
	{RoleHost, []string{"host", "hostess", "greeter", "front desk", "reception"}},
	{RoleServer, []string{"server", "waiter", "waitress", "wait staff", "bartender", "barista", "busser", "food runner"}},
}

// ResolveRole derives the variant from the job title, then the department.
func ResolveRole(title, department string) Role {
	for _, field := range []string{title, department} {
		words := tokenize(field)
		if len(words) == 0 {
			continue
		}
		joined := " " + strings.Join(words, " ") + " "
		for _, rk := range roleKeywords {
			for _, kw := range rk.keywords {
				if strings.Contains(joined, " "+kw+" ") {
					return rk.role
				}
			}
		}
	}
	return RoleGeneral
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

// Questions returns the role-specific interview questions.
func (r Role) Questions() []string {
	common := []string{
		"Which days and shifts are you available to work?",
		"When would you be able to start?",
	}
	var specific []string
	switch r {
	case RoleServer:
		specific = []string{
			"Tell me about your experience serving guests in a restaurant.",
			"How do you handle a guest who is unhappy with their meal?",
			"How many tables are you comfortable managing during a rush?",
		}
	case RoleCook:
		specific = []string{
			"What kitchen stations have you worked, and for how long?",
			"How do you keep up with tickets during a busy service?",
			"What food safety practices do you follow on every shift?",
		}
	case RoleHost:
		specific = []string{
			"Tell me about your experience greeting and seating guests.",
			"How would you manage a long wait list on a Friday night?",
		}
	case RoleManager:
		specific = []string{
			"How many people have you supervised, and in what kind of operation?",
			"Describe how you handled a conflict between two team members.",
			"How do you approach scheduling and labor costs?",
		}
	default:
		specific = []string{
			"Tell me about your most recent job and what you did there.",
			"What interests you about working with us?",
		}
	}
	return append(specific, common...)
}

// Focus is a one-line description of what the interviewer should assess.
func (r Role) Focus() string {
	switch r {
	case RoleServer:
		return "guest service, table management and composure under pressure"
	case RoleCook:
		return "station experience, ticket speed and food safety"
	case RoleHost:
		return "warmth with guests and wait list management"
	case RoleManager:
		return "team leadership, conflict handling and scheduling"
	default:
		return "work history, reliability and motivation"
	}
}
