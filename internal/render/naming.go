package render

import (
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	displayTimeLayout = "2006-01-02 15:04:05"
	untitled          = "Untitled"
	maxTitleLen       = 120
)

// OutputKey is the storage locator for a render published at now. The id
// suffix keeps same-second renders for one user apart.
func OutputKey(userID string, now time.Time, id string) string {
	return fmt.Sprintf("users/%s/rendered_videos/output-%d-%s.mp4", userID, now.Unix(), id)
}

// DisplayName is the human label stored with a render: the normalised
// project title followed by the UTC timestamp.
func DisplayName(title string, now time.Time) string {
	t := cleanTitle(title)
	if t == "" {
		t = untitled
	}
	return t + " " + now.UTC().Format(displayTimeLayout)
}

// cleanTitle keeps the title as typed apart from control characters and
// runs of whitespace. It is a label, not a path.
func cleanTitle(title string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, norm.NFC.String(title))

	t := strings.Join(strings.Fields(stripped), " ")
	if runes := []rune(t); len(runes) > maxTitleLen {
		t = strings.TrimSpace(string(runes[:maxTitleLen]))
	}
	return t
}

// localClipName names the position-th fetched clip. The numeric prefix keeps
// clips with the same fileName from overwriting each other.
func localClipName(position int, fileName string) string {
	base := SanitizeName(path.Base(strings.ReplaceAll(fileName, "\\", "/")), 100)
	if base == "" || base == "." || base == ".." {
		base = "clip.mp4"
	}
	return fmt.Sprintf("%03d-%s", position, base)
}

// SanitizeName drops control characters and replaces anything outside a
// conservative set with '_'.
func SanitizeName(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if isAllowedNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	cleaned := strings.TrimSpace(b.String())
	if maxLen > 0 {
		runes := []rune(cleaned)
		if len(runes) > maxLen {
			cleaned = strings.TrimSpace(string(runes[:maxLen]))
		}
	}
	return cleaned
}

func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) {
		return true
	}
	switch r {
	case ' ', '-', '_', '.', ',', '(', ')', '&', '!':
		return true
	default:
		return false
	}
}
