package criteria

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "Empty input",
			input:    "",
			expected: []string{},
		},
		{
			name:     "Whitespace only",
			input:    " \n\t\n",
			expected: []string{},
		},
		{
			name:     "Checkbox dedup ignores checked state",
			input:    "## Acceptance Criteria\n- [ ] A\n- [x] B\n- [ ] A",
			expected: []string{"A", "B"},
		},
		{
			name:     "Uppercase X and star marker",
			input:    "## Acceptance Criteria\n* [X] Done item\n*[ ] Tight item",
			expected: []string{"Done item", "Tight item"},
		},
		{
			name:     "Checkbox wins over numbered",
			input:    "## Acceptance Criteria\n1. numbered one\n- [ ] box one\n2. numbered two\n- [x] box two",
			expected: []string{"box one", "box two"},
		},
		{
			name:     "Numbered items with both delimiters",
			input:    "# Acceptance Criteria\n1. Login works\n2) Logout works\n  10. Profile loads",
			expected: []string{"Login works", "Logout works", "Profile loads"},
		},
		{
			name:     "Plain bullets inside section",
			input:    "### Acceptance Criteria\n- First\n* Second\n- First",
			expected: []string{"First", "Second"},
		},
		{
			name:     "Plain bullets without heading are ignored",
			input:    "Some context\n- not a criterion\n- neither is this",
			expected: []string{},
		},
		{
			name:     "Checkboxes without heading use the whole text",
			input:    "Intro paragraph\n\n- [ ] Page renders\n- [ ] Button is blue",
			expected: []string{"Page renders", "Button is blue"},
		},
		{
			name:     "Numbered items without heading use the whole text",
			input:    "Steps:\n1. Open the app\n2. Click save",
			expected: []string{"Open the app", "Click save"},
		},
		{
			name:     "Heading match is case insensitive",
			input:    "##   ACCEPTANCE criteria   \n- Works",
			expected: []string{"Works"},
		},
		{
			name:     "Level four heading is not a section",
			input:    "#### Acceptance Criteria\n- Works",
			expected: []string{},
		},
		{
			name:     "Section ends at heading of same level",
			input:    "## Acceptance Criteria\n- a\n- b\n## Notes\n- c",
			expected: []string{"a", "b"},
		},
		{
			name:     "Section ends at shallower heading",
			input:    "## Acceptance Criteria\n- a\n# Appendix\n- c",
			expected: []string{"a"},
		},
		{
			name:     "Deeper headings stay inside section",
			input:    "## Acceptance Criteria\n### Login\n- [ ] a\n### Logout\n- [ ] b\n## Other\n- [ ] c",
			expected: []string{"a", "b"},
		},
		{
			name:     "Two blank lines end the section",
			input:    "# Acceptance Criteria\n- a\n\n\n- b",
			expected: []string{"a"},
		},
		{
			name:     "Single blank line does not end the section",
			input:    "# Acceptance Criteria\n- a\n\n- b",
			expected: []string{"a", "b"},
		},
		{
			name:     "Search is limited to the section when found",
			input:    "## Acceptance Criteria\n- inside\n## Tasks\n- [ ] outside checkbox",
			expected: []string{"inside"},
		},
		{
			name:     "Empty section yields nothing",
			input:    "Intro\n- [ ] outside\n## Acceptance Criteria\n## Next\n- [ ] later",
			expected: []string{},
		},
		{
			name:     "Empty heading ends the section",
			input:    "## Acceptance Criteria\n- A\n##\n- Outside",
			expected: []string{"A"},
		},
		{
			name:     "Empty heading with closing markers ends the section",
			input:    "## Acceptance Criteria\n- A\n# #\n- Outside",
			expected: []string{"A"},
		},
		{
			name:     "Deeper empty heading stays inside section",
			input:    "## Acceptance Criteria\n- A\n###\n- B",
			expected: []string{"A", "B"},
		},
		{
			name:     "Empty heading inside fenced code is not a boundary",
			input:    "## Acceptance Criteria\n- A\n```\n##\n```\n- B",
			expected: []string{"A", "B"},
		},
		{
			name:     "Seven markers are not a heading",
			input:    "## Acceptance Criteria\n- A\n#######\n- B",
			expected: []string{"A", "B"},
		},
		{
			name:     "Heading without space after markers is not a section",
			input:    "#Acceptance Criteria\n- A\n- B",
			expected: []string{},
		},
		{
			name:     "Heading inside fenced code is not a section",
			input:    "```\n## Acceptance Criteria\n```\n- stray bullet",
			expected: []string{},
		},
		{
			name:     "Setext heading is not a section",
			input:    "Acceptance Criteria\n---\n- stray bullet",
			expected: []string{},
		},
		{
			name:     "Internal whitespace is preserved",
			input:    "- [ ]   User  can   log in  ",
			expected: []string{"User  can   log in"},
		},
		{
			name:     "Empty checkbox text is skipped",
			input:    "- [ ]   \n- [x] real",
			expected: []string{"real"},
		},
		{
			name:     "Dedup is case sensitive",
			input:    "- [ ] Save\n- [ ] save",
			expected: []string{"Save", "save"},
		},
		{
			name:     "CRLF line endings",
			input:    "## Acceptance Criteria\r\n- [ ] A\r\n- [ ] B\r\n",
			expected: []string{"A", "B"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Extract(tt.input)
			require.NotNil(t, result)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestAnalyzeReportsStyle(t *testing.T) {
	tests := []struct {
		input        string
		style        Style
		sectionFound bool
	}{
		{"", StyleNone, false},
		{"- [ ] a", StyleCheckbox, false},
		{"1. a", StyleNumbered, false},
		{"## Acceptance Criteria\n- a", StyleBullet, true},
		{"## Acceptance Criteria\nprose only", StyleNone, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.style)+"/"+tt.input, func(t *testing.T) {
			result := Analyze(tt.input)
			assert.Equal(t, tt.style, result.Style)
			assert.Equal(t, tt.sectionFound, result.SectionFound)
		})
	}
}

func TestExtractSection(t *testing.T) {
	description := "# Ticket\nContext\n## Acceptance Criteria\n- one\n- two\n## Out of scope\n- three"

	section, ok := ExtractSection(description)
	require.True(t, ok)
	assert.Equal(t, 2, section.Level)
	assert.Equal(t, "Acceptance Criteria", section.Heading)
	assert.Equal(t, "- one\n- two", section.Body)

	_, ok = ExtractSection("no headings here")
	assert.False(t, ok)
}

func TestExtractUsesFirstMatchingSection(t *testing.T) {
	description := "## Acceptance Criteria\n- first\n## Acceptance Criteria\n- second"
	assert.Equal(t, []string{"first"}, Extract(description))
}
