package storage

import (
	"fmt"
	"regexp"
	"strings"
)

// RunsPrefix is the key prefix of every run artifact
const RunsPrefix = "runs/"

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// BuildScreenshotKey builds the key of the screenshot taken for one criterion.
// Criteria are numbered from 1 in the key to match what people see in comments.
func BuildScreenshotKey(ticketID, runID string, criterionIndex int, ext string) string {
	return fmt.Sprintf(RunsPrefix+"%s/%s/criterion-%02d.%s", sanitize(ticketID), sanitize(runID), criterionIndex+1, screenshotExt(ext))
}

// ScreenshotContentType returns the media type stored with a screenshot of
// the given image type. An empty type means png.
func ScreenshotContentType(ext string) string {
	ext = strings.ToLower(screenshotExt(ext))
	if ext == "jpg" {
		ext = "jpeg"
	}
	return "image/" + ext
}

func screenshotExt(ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		return "png"
	}
	return ext
}

// BuildResultKey builds the key of a run's result document
func BuildResultKey(ticketID, runID string) string {
	return fmt.Sprintf(RunsPrefix+"%s/%s/result.json", sanitize(ticketID), sanitize(runID))
}

// TicketPrefix returns the key prefix shared by every artifact of a ticket
func TicketPrefix(ticketID string) string {
	return fmt.Sprintf(RunsPrefix+"%s/", sanitize(ticketID))
}

func sanitize(part string) string {
	part = unsafeKeyChars.ReplaceAllString(part, "_")
	part = strings.Trim(part, ".")
	if part == "" {
		return "_"
	}
	return part
}
