// Package deviceinfo derives human-readable device descriptors from raw
// User-Agent strings for session tracking and security notifications. The
// data is advisory only: a forged user agent is accepted as-is, and parsing
// can never fail the caller.
package deviceinfo

import (
	"fmt"
	"strings"

	ua "github.com/mileusna/useragent"
)

const (
	unknownDevice  = "Unknown Device"
	unknownBrowser = "Unknown Browser"
	unknownOS      = "Unknown OS"

	TypeDesktop = "desktop"
	TypeMobile  = "mobile"
	TypeTablet  = "tablet"
	TypeBot     = "bot"
)

// Info is the structured result of parsing a User-Agent string.
type Info struct {
	Browser        string `json:"browser"`
	BrowserVersion string `json:"browser_version,omitempty"`
	OS             string `json:"os"`
	OSVersion      string `json:"os_version,omitempty"`
	DeviceType     string `json:"device_type"`
	Raw            string `json:"-"`
}

// Summary renders a display string like "Chrome 120 on Mac OS X 10.15
// (desktop)", or "Unknown Device" when the user agent is absent or yields
// nothing recognizable.
func Summary(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return unknownDevice
	}
	info := Detail(userAgent)
	if info.Browser == unknownBrowser && info.OS == unknownOS {
		return unknownDevice
	}
	browser := info.Browser
	if info.BrowserVersion != "" {
		browser = fmt.Sprintf("%s %s", browser, info.BrowserVersion)
	}
	os := info.OS
	if info.OSVersion != "" {
		os = fmt.Sprintf("%s %s", os, info.OSVersion)
	}
	return fmt.Sprintf("%s on %s (%s)", browser, os, info.DeviceType)
}

// Detail parses the user agent into its structured parts, degrading every
// unrecognized field to its unknown default.
func Detail(userAgent string) Info {
	info := Info{
		Browser:    unknownBrowser,
		OS:         unknownOS,
		DeviceType: TypeDesktop,
		Raw:        userAgent,
	}
	if strings.TrimSpace(userAgent) == "" {
		return info
	}

	parsed := ua.Parse(userAgent)
	// The parser echoes the first product token of an arbitrary string back
	// as Name; accept it only when a version, OS, or device class
	// corroborates a real user agent.
	recognized := parsed.Version != "" || parsed.OS != "" || parsed.Mobile || parsed.Tablet || parsed.Bot
	if parsed.Name != "" && recognized {
		info.Browser = parsed.Name
		if parsed.Version != "" {
			info.BrowserVersion = majorVersion(parsed.Version)
		}
	}
	if parsed.OS != "" {
		info.OS = parsed.OS
	}
	info.OSVersion = parsed.OSVersion

	switch {
	case parsed.Bot:
		info.DeviceType = TypeBot
	case parsed.Tablet:
		info.DeviceType = TypeTablet
	case parsed.Mobile:
		info.DeviceType = TypeMobile
	}
	return info
}

// IsMobile reports whether the user agent looks like a phone or tablet.
func IsMobile(userAgent string) bool {
	t := Detail(userAgent).DeviceType
	return t == TypeMobile || t == TypeTablet
}

func majorVersion(version string) string {
	major, _, _ := strings.Cut(version, ".")
	return major
}
