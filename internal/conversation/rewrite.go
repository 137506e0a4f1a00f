package conversation

import (
	"regexp"
	"strings"

	"plannerbot/internal/event"
)

// Summary rewriting turns the sender's first-person phrasing into third
// person ("I'm going to the gym" becomes "Andrea is going to the gym"). It
// is a best-effort text transformation driven by the extracted subject and
// verb tense, not a grammar engine: an ordered rule table is evaluated
// first-match-wins and the terminal default prefixes the sender's name.

type rewriteRule struct {
	// tenses the rule applies to; empty means any tense.
	tenses []string
	// subjectI requires the extracted subject to be a stand-alone "I".
	subjectI bool
	// compound matches "X and I" phrasing in subject or summary.
	compound bool
	// noSubject restricts the rule to records where relation extraction
	// found no subject at all.
	noSubject bool

	pattern *regexp.Regexp
	// replace is the substitution template; {name} expands to the
	// sender's first name.
	replace string
	// firstOnly substitutes only the first occurrence; a bare "I" later
	// in the sentence may be a different clause entirely.
	firstOnly bool
}

var (
	reContractedAm   = regexp.MustCompile(`(?i)\bI['’]m\b`)
	reContractedWill = regexp.MustCompile(`(?i)\bI['’]ll\b`)
	reIHave          = regexp.MustCompile(`\bI have\b`)
	reIAm            = regexp.MustCompile(`\bI am\b`)
	reAndI           = regexp.MustCompile(`\band I\b`)
	reLoneI          = regexp.MustCompile(`\bI\b`)
)

// rewriteRules is evaluated in order; the first rule whose tense, subject
// condition and pattern all match wins.
var rewriteRules = []rewriteRule{
	{tenses: []string{"present"}, subjectI: true, pattern: reIHave, replace: "{name} has", firstOnly: true},
	{tenses: []string{"present", "future"}, subjectI: true, pattern: reContractedAm, replace: "{name} is"},
	{tenses: []string{"present"}, subjectI: true, pattern: reIAm, replace: "{name} is", firstOnly: true},
	{tenses: []string{"present", "future"}, subjectI: true, pattern: reContractedWill, replace: "{name} will"},
	{compound: true, pattern: reAndI, replace: "and {name}"},
	{tenses: []string{"future"}, subjectI: true, pattern: reLoneI, replace: "{name}", firstOnly: true},
	// Relation extraction found nothing; try the contractions before
	// giving up.
	{noSubject: true, pattern: reContractedAm, replace: "{name} is"},
	{noSubject: true, pattern: reContractedWill, replace: "{name} will"},
}

// RewriteSummary applies the first matching rewrite rule, or falls back to
// prefixing the sender's name when no rule fits.
func RewriteSummary(summary, name string, rel event.Relation) string {
	if name == "" {
		return summary
	}

	hasSubject := rel.Subject != ""
	subjectIsI := rel.Subject == "I"
	compound := strings.Contains(rel.Subject, "and I") || strings.Contains(summary, "and I")

	for _, rule := range rewriteRules {
		if len(rule.tenses) > 0 && !containsString(rule.tenses, rel.Tense) {
			continue
		}
		if rule.subjectI && !subjectIsI {
			continue
		}
		if rule.compound && !compound {
			continue
		}
		if rule.noSubject && hasSubject {
			continue
		}
		if !rule.pattern.MatchString(summary) {
			continue
		}
		repl := strings.ReplaceAll(rule.replace, "{name}", name)
		if rule.firstOnly {
			loc := rule.pattern.FindStringIndex(summary)
			return summary[:loc[0]] + repl + summary[loc[1]:]
		}
		return rule.pattern.ReplaceAllString(summary, repl)
	}

	// Terminal default: no reliable subject phrasing found.
	return name + ": " + summary
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
