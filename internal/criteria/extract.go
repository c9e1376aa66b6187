// Package criteria turns ticket descriptions into ordered lists of
// acceptance criteria.
//
// Three authoring styles are recognised, tried in order: checkbox items
// ("- [ ] ..."), numbered items ("1. ..."), and, only under an explicit
// "Acceptance Criteria" heading, plain bullets ("- ..."). The first style
// that yields anything wins.
package criteria

import (
	"regexp"
	"strings"
)

var (
	checkboxPattern = regexp.MustCompile(`^\s*[-*]\s*\[[ xX]\]\s*(.+)$`)
	numberedPattern = regexp.MustCompile(`^\s*\d+[.)]\s*(.+)$`)
	bulletPattern   = regexp.MustCompile(`^\s*[-*]\s+(.+)$`)
)

// Style names the syntax a criteria list was extracted from.
type Style string

const (
	StyleNone     Style = "none"
	StyleCheckbox Style = "checkbox"
	StyleNumbered Style = "numbered"
	StyleBullet   Style = "bullet"
)

// Result is the outcome of an extraction with the details needed for
// diagnostics.
type Result struct {
	Criteria     []string `json:"criteria"`
	Style        Style    `json:"style"`
	SectionFound bool     `json:"sectionFound"`
}

// Extract returns the acceptance criteria found in description. The result
// is never nil; an empty or unmatched description yields an empty slice.
func Extract(description string) []string {
	return Analyze(description).Criteria
}

// Analyze is Extract plus the style that matched and whether an
// "Acceptance Criteria" section was found.
func Analyze(description string) Result {
	if strings.TrimSpace(description) == "" {
		return Result{Criteria: []string{}, Style: StyleNone}
	}

	source := normalizeNewlines(description)
	section, found := locateSection(source)

	search := source
	if found {
		search = section.Body
	}
	lines := strings.Split(search, "\n")

	if items := collect(lines, checkboxPattern); len(items) > 0 {
		return Result{Criteria: items, Style: StyleCheckbox, SectionFound: found}
	}
	if items := collect(lines, numberedPattern); len(items) > 0 {
		return Result{Criteria: items, Style: StyleNumbered, SectionFound: found}
	}
	if found {
		if items := collect(lines, bulletPattern); len(items) > 0 {
			return Result{Criteria: items, Style: StyleBullet, SectionFound: true}
		}
	}

	return Result{Criteria: []string{}, Style: StyleNone, SectionFound: found}
}

// collect returns the trimmed first capture group of every matching line,
// skipping empty and already seen values.
func collect(lines []string, pattern *regexp.Regexp) []string {
	items := []string{}
	seen := make(map[string]struct{})

	for _, line := range lines {
		m := pattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		item := strings.TrimSpace(m[1])
		if item == "" {
			continue
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		items = append(items, item)
	}

	return items
}
