package verify

import (
	"fmt"
	"strings"
	"time"

	"github.com/Imaginary-Space/linear-stagehand-tests/internal/types"
)

var verdictMarks = map[types.Verdict]string{
	types.VerdictPassed: "✅",
	types.VerdictFailed: "❌",
	types.VerdictError:  "⚠️",
}

// FormatComment renders a result as a markdown ticket comment.
func FormatComment(result *types.Result) string {
	var b strings.Builder

	switch {
	case result.AllPassed():
		fmt.Fprintf(&b, "### Acceptance check passed (%d/%d)\n\n", result.Passed, len(result.Criteria))
	default:
		fmt.Fprintf(&b, "### Acceptance check: %d passed, %d failed, %d could not be checked\n\n",
			result.Passed, result.Failed, result.Errored)
	}

	for _, c := range result.Criteria {
		fmt.Fprintf(&b, "- %s %s\n", verdictMarks[c.Verdict], c.Criterion)
		detail := c.Reasoning
		if c.Verdict == types.VerdictError {
			detail = c.Error
		}
		if detail = strings.TrimSpace(detail); detail != "" && c.Verdict != types.VerdictPassed {
			fmt.Fprintf(&b, "  > %s\n", strings.ReplaceAll(detail, "\n", " "))
		}
	}

	fmt.Fprintf(&b, "\n<sub>Run `%s` against %s in %s</sub>\n",
		result.RunID, result.TargetURL, result.Duration().Round(time.Second))
	return b.String()
}
