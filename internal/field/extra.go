package field

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/araddon/dateparse"
)

// The metadata-capture plugin writes its extras into the free-text
// Extra column as "label: value" lines. Only the labels below are
// recognized; everything else in the column is ignored.
var (
	downloadPattern = regexp.MustCompile(`download:\s*(\d+)`)
	citePattern     = regexp.MustCompile(`CNKICite:\s*(\d+)`)
	majorPattern    = regexp.MustCompile(`major:\s*([^\n\r]+)`)
)

// Extra holds the plugin-captured metadata mined from the Extra
// column. Zero values mean the label was absent.
type Extra struct {
	DownloadCount int
	CiteCount     int
	Subject       string
}

// ParseExtra extracts recognized plugin metadata from a raw Extra
// value. It never fails; unrecognized content is simply skipped.
func ParseExtra(raw string) Extra {
	var e Extra
	if raw == "" {
		return e
	}
	if m := downloadPattern.FindStringSubmatch(raw); m != nil {
		e.DownloadCount, _ = strconv.Atoi(m[1])
	}
	if m := citePattern.FindStringSubmatch(raw); m != nil {
		e.CiteCount, _ = strconv.Atoi(m[1])
	}
	if m := majorPattern.FindStringSubmatch(raw); m != nil {
		e.Subject = CollapseSpace(m[1])
	}
	return e
}

var yearPattern = regexp.MustCompile(`\b(\d{4})\b`)

// ParseYear extracts a publication year from a raw cell. A plain
// integer wins; otherwise the first 4-digit run is taken. Years
// outside 1000 to 2999 are rejected as column noise.
func ParseYear(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if y, err := strconv.Atoi(s); err == nil {
		return validYear(y)
	}
	if m := yearPattern.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		return validYear(y)
	}
	return 0, false
}

func validYear(y int) (int, bool) {
	if y < 1000 || y > 2999 {
		return 0, false
	}
	return y, true
}

// ParseDate normalizes a heterogeneous date string ("2021/3/15",
// "March 15, 2021", "2021-03-15 10:00") to ISO 2006-01-02. Unparseable
// input reports ok=false rather than an error; dates are attributes,
// never identity.
func ParseDate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return "", false
	}
	return t.Format("2006-01-02"), true
}
