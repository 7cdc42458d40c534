package classifier

import (
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// DefaultRoleFamily is the tag assigned to matching postings.
const DefaultRoleFamily = "SDE"

// Rules are the static keyword lists the classifier matches against.
// Keywords are matched as case-insensitive substrings.
type Rules struct {
	RoleFamily string
	Include    []string
	Exclude    []string
}

// DefaultRules returns the built-in software-engineering keyword lists.
func DefaultRules() Rules {
	return Rules{
		RoleFamily: DefaultRoleFamily,
		Include: []string{
			"software engineer", "software developer", "swe", "sde",
			"backend", "back-end", "frontend", "front-end",
			"full stack", "full-stack",
			"platform engineer", "infrastructure engineer", "distributed systems",
			"site reliability engineer", "sre", "devops",
			"developer productivity", "build & release", "build and release",
			"android", "ios", "mobile engineer",
			"data platform engineer", "ml platform engineer",
			"compiler engineer", "systems engineer", "kernel engineer",
		},
		Exclude: []string{
			"intern", "sales engineer", "manager",
			"solutions engineer", "support engineer", "implementation",
			"customer success", "professional services", "field engineer",
		},
	}
}

// Classifier maps posting text to a role family. It is safe for concurrent use.
type Classifier struct {
	roleFamily string
	include    *ahocorasick.Matcher
	exclude    *ahocorasick.Matcher
}

// New builds the include and exclude automata from rules.
func New(rules Rules) *Classifier {
	family := rules.RoleFamily
	if family == "" {
		family = DefaultRoleFamily
	}
	return &Classifier{
		roleFamily: family,
		include:    buildMatcher(rules.Include),
		exclude:    buildMatcher(rules.Exclude),
	}
}

func buildMatcher(keywords []string) *ahocorasick.Matcher {
	normalized := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			normalized = append(normalized, kw)
		}
	}
	if len(normalized) == 0 {
		return nil
	}
	return ahocorasick.NewStringMatcher(normalized)
}

// RoleFamily returns the tag this classifier assigns.
func (c *Classifier) RoleFamily() string {
	return c.roleFamily
}

// Classify returns the role family for a posting, or "" when it is
// unclassified. Excludes win over includes.
func (c *Classifier) Classify(title, department string) string {
	t := strings.ToLower(title)
	d := strings.ToLower(department)

	if contains(c.exclude, t) || contains(c.exclude, d) {
		return ""
	}
	if contains(c.include, t) || contains(c.include, d) {
		return c.roleFamily
	}
	if strings.Contains(t, "engineer") && strings.Contains(t, "software") {
		return c.roleFamily
	}
	return ""
}

func contains(m *ahocorasick.Matcher, text string) bool {
	if m == nil || text == "" {
		return false
	}
	return len(m.MatchThreadSafe([]byte(text))) > 0
}
