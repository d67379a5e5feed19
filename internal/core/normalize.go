package core

// normalize.go converts raw CSV cells into typed values.
//
// Export files are hand-edited and produced by several generations of the
// reporting pipeline, so cells arrive with thousands separators, "none"/"nan"
// placeholders, versioned OSF links and every DOI spelling in use. None of the
// functions here return errors: malformed input yields the documented default.

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// guidRegex matches a whole candidate path segment.
var guidRegex = regexp.MustCompile(`^[a-z0-9]{4,10}$`)

// osfSubpaths are OSF route names that look like GUIDs but address a view or
// resource below the object.
var osfSubpaths = map[string]bool{
	"files":        true,
	"download":     true,
	"wiki":         true,
	"osfstorage":   true,
	"analytics":    true,
	"forks":        true,
	"metadata":     true,
	"overview":     true,
	"addons":       true,
	"settings":     true,
	"components":   true,
	"contributors": true,
	"preprints":    true,
	"registries":   true,
	"providers":    true,
}

// doiPrefixRegex matches one leading resolver or scheme prefix.
var doiPrefixRegex = regexp.MustCompile(`(?i)^\s*(?:https?://(?:dx\.)?doi\.org/|doi:\s*)`)

// nullTokens are placeholder strings emitted by spreadsheet tools for missing values.
var nullTokens = map[string]bool{
	"none": true,
	"nan":  true,
	"null": true,
	"n/a":  true,
}

const (
	// DOIResolver is prepended to a bare DOI to form its URL.
	DOIResolver = "https://doi.org/"

	// OSFBaseURL is the host used to build canonical object links.
	OSFBaseURL = "https://osf.io/"
)

// cleanNumber trims the cell, drops thousands separators and reports whether
// what is left looks like a number.
func cleanNumber(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || nullTokens[strings.ToLower(s)] {
		return "", false
	}
	s = strings.ReplaceAll(s, ",", "")
	if !numericRegex.MatchString(s) {
		return "", false
	}
	return s, true
}

// ParseInt parses an integer cell, returning def for empty or non-numeric input.
// Integral floats such as "12.0" and "1e3" are accepted and truncated toward zero.
func ParseInt(raw string, def int64) int64 {
	s, ok := cleanNumber(raw)
	if !ok {
		return def
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	if f >= math.MaxInt64 || f <= math.MinInt64 {
		return def
	}
	return int64(f)
}

// ParseFloat parses a floating point cell, returning def for empty or non-numeric input.
func ParseFloat(raw string, def float64) float64 {
	if f, ok := parseFloatOK(raw); ok {
		return f
	}
	return def
}

func parseFloatOK(raw string) (float64, bool) {
	s, ok := cleanNumber(raw)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ExtractGUID returns the OSF GUID embedded in a link or bare token.
//
// Path segments are searched from the end. Each segment is cut at the first
// '_', '?' or '#' so versioned links like "kr68a_v2" resolve to "kr68a".
// OSF route names ("files", "download", "wiki", ...) are skipped so deep links
// resolve to their object. The host is never a candidate. Returns "" when no
// segment qualifies.
func ExtractGUID(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
		slash := strings.IndexByte(s, '/')
		if slash < 0 {
			return ""
		}
		s = s[slash+1:]
	}
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}

	segments := strings.Split(s, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		seg := segments[i]
		if cut := strings.IndexAny(seg, "_?#"); cut >= 0 {
			seg = seg[:cut]
		}
		seg = strings.ToLower(strings.TrimSpace(seg))
		if guidRegex.MatchString(seg) && !osfSubpaths[seg] {
			return seg
		}
	}
	return ""
}

// NormalizeDOI strips resolver URLs and "doi:" prefixes, returning the bare DOI.
// Stacked prefixes are removed until none remain, so the result is a fixed point.
func NormalizeDOI(raw string) string {
	s := strings.TrimSpace(raw)
	for {
		loc := doiPrefixRegex.FindStringIndex(s)
		if loc == nil || loc[1] == 0 {
			break
		}
		s = strings.TrimSpace(s[loc[1]:])
	}
	return s
}

// DOIURL returns the resolvable URL for a DOI cell, or "" when the cell holds no DOI.
func DOIURL(raw string) string {
	doi := NormalizeDOI(raw)
	if doi == "" {
		return ""
	}
	return DOIResolver + doi
}

// OSFURL returns a canonical link for an osf_link cell.
func OSFURL(raw string) string {
	if guid := ExtractGUID(raw); guid != "" {
		return OSFBaseURL + guid + "/"
	}
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToLower(s), "http") {
		return s
	}
	return ""
}

var displayPrinter = message.NewPrinter(language.English)

// HumanInt formats n with thousands separators ("12,345").
func HumanInt(n int64) string {
	return displayPrinter.Sprintf("%d", n)
}

// HumanFloat formats f with thousands separators and a fixed number of decimals.
func HumanFloat(f float64, digits int) string {
	if digits < 0 {
		digits = 0
	}
	return displayPrinter.Sprintf(fmt.Sprintf("%%.%df", digits), f)
}

// NormalizeHeader cleans a header cell: trims whitespace and drops a stray BOM.
func NormalizeHeader(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.TrimSpace(s)
}

