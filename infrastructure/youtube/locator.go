package youtube

import (
	"regexp"
	"strconv"
)

var idPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/)([\w-]{11})`),
	regexp.MustCompile(`youtube\.com/embed/([\w-]{11})`),
	regexp.MustCompile(`youtube\.com/v/([\w-]{11})`),
}

var locatorPattern = regexp.MustCompile(`^(https?://)?(www\.)?(youtube\.com/watch\?v=|youtu\.be/)[\w-]{11}`)

// ValidLocator reports whether s is an accepted watch or short link.
func ValidLocator(s string) bool {
	return locatorPattern.MatchString(s)
}

// ExtractID returns the 11 character video id of a watch, short, embed or
// /v/ link.
func ExtractID(locator string) (string, bool) {
	for _, re := range idPatterns {
		if m := re.FindStringSubmatch(locator); m != nil {
			return m[1], true
		}
	}
	return "", false
}

var isoDuration = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// parseISODuration converts values like PT1H4M13S into seconds.
func parseISODuration(s string) (int, bool) {
	m := isoDuration.FindStringSubmatch(s)
	if m == nil || s == "PT" {
		return 0, false
	}
	total := 0
	for i, mult := range []int{3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, false
		}
		total += n * mult
	}
	return total, true
}
