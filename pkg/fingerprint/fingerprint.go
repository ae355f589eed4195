// Package fingerprint classifies user-agent strings into coarse browser
// families used to partition cached font stylesheets.
//
// Google Fonts serves different CSS (woff2 vs woff, unicode-range splits)
// depending on the requesting browser, so two browsers may only share a cached
// stylesheet when they share a fingerprint tag.
package fingerprint

import (
	"regexp"
)

// Family is a browser engine family.
type Family string

const (
	FamilyOpera   Family = "Opera"
	FamilyEdge    Family = "Edge"
	FamilyChrome  Family = "Chrome"
	FamilyWebKit  Family = "WebKit"
	FamilyFirefox Family = "Firefox"
	FamilyUnknown Family = "Unknown"
)

// signature pairs a family with the engine token that identifies it.
type signature struct {
	family Family
	re     *regexp.Regexp
}

// signatures are checked in order. Opera and Edge carry Chrome and Safari
// tokens, and Chrome carries AppleWebKit, so the specific ones come first.
var signatures = []signature{
	{FamilyOpera, regexp.MustCompile(`(?i)\s+OPR/(\d+)`)},
	{FamilyEdge, regexp.MustCompile(`(?i)\s+Edge/(\d+)`)},
	{FamilyChrome, regexp.MustCompile(`(?i)\s+Chrome/(\d+)`)},
	{FamilyWebKit, regexp.MustCompile(`(?i)\s+AppleWebKit/(\d+)`)},
	{FamilyFirefox, regexp.MustCompile(`(?i)\s+Firefox/(\d+)`)},
}

var (
	osPattern     = regexp.MustCompile(`(?im)^[^(]*\(\s*(\w+)`)
	mobilePattern = regexp.MustCompile(`(?i)Mobile`)
)

// Fingerprint is the coarse classification of a user agent.
type Fingerprint struct {
	// Family is the matched engine family
	Family Family

	// Version is the major version digit run of the matched engine token
	Version string

	// OS is the first word inside the leading parenthesized comment
	OS string

	// Mobile is true when the user agent mentions "Mobile"
	Mobile bool
}

// Unknown is the no-match sentinel.
var Unknown = Fingerprint{Family: FamilyUnknown}

// Parse classifies userAgent. The boolean is false when no known engine
// signature matched, in which case the Unknown sentinel is returned.
func Parse(userAgent string) (Fingerprint, bool) {
	if userAgent == "" {
		return Unknown, false
	}

	for _, sig := range signatures {
		m := sig.re.FindStringSubmatch(userAgent)
		if m == nil {
			continue
		}
		return Fingerprint{
			Family:  sig.family,
			Version: m[1],
			OS:      parseOS(userAgent),
			Mobile:  mobilePattern.MatchString(userAgent),
		}, true
	}

	return Unknown, false
}

func parseOS(userAgent string) string {
	if m := osPattern.FindStringSubmatch(userAgent); m != nil {
		return m[1]
	}
	return ""
}

// Tag returns the cache partition tag, e.g. "Chrome123WindowsMobile".
// The Unknown sentinel has an empty tag.
func (f Fingerprint) Tag() string {
	if f.Family == FamilyUnknown || f.Family == "" {
		return ""
	}
	tag := string(f.Family) + f.Version + f.OS
	if f.Mobile {
		tag += "Mobile"
	}
	return tag
}
