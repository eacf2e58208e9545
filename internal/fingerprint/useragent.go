package fingerprint

import (
	"regexp"
	"strings"
)

// Device type classifications.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
	DeviceUnknown = "unknown"

	UnknownLabel = "Unknown"
)

type parsedUA struct {
	deviceType      string
	brand           string
	model           string
	platform        string
	platformVersion string
	browserName     string
	browserVersion  string
	engine          string
	engineVersion   string
}

var (
	tabletKeywords = []string{"ipad", "tablet", "kindle", "silk", "playbook", "sm-t"}
	mobileKeywords = []string{"iphone", "ipod", "android", "mobile", "windows phone", "blackberry", "opera mini"}

	versionAfter = func(marker string) *regexp.Regexp {
		return regexp.MustCompile(regexp.QuoteMeta(marker) + `[/ ]?([0-9][0-9._]*)`)
	}

	windowsVersionRe = versionAfter("Windows NT")
	macVersionRe     = versionAfter("Mac OS X")
	androidVersionRe = versionAfter("Android")
	iosVersionRe     = regexp.MustCompile(`OS ([0-9_]+) like Mac OS X`)

	chromeRe  = versionAfter("Chrome")
	edgeRe    = versionAfter("Edg")
	operaRe   = versionAfter("OPR")
	firefoxRe = versionAfter("Firefox")
	safariRe  = versionAfter("Version")
	webkitRe  = versionAfter("AppleWebKit")
	geckoRe   = versionAfter("rv:")

	samsungModelRe = regexp.MustCompile(`\b(SM-[A-Z0-9]+)`)
	pixelModelRe   = regexp.MustCompile(`\b(Pixel [0-9a-zA-Z ]*?)\b(?: Build|\))`)
)

// parseUserAgent classifies a user-agent string with rule-based keyword
// matching. An empty UA yields "Unknown"/"unknown" across the board.
func parseUserAgent(ua string) parsedUA {
	p := parsedUA{
		deviceType:  DeviceUnknown,
		brand:       UnknownLabel,
		model:       UnknownLabel,
		platform:    UnknownLabel,
		browserName: UnknownLabel,
		engine:      UnknownLabel,
	}
	if ua == "" {
		return p
	}

	lower := strings.ToLower(ua)

	p.platform, p.platformVersion = parsePlatform(ua, lower)
	p.deviceType = guessTypeFromKeywords(lower)
	p.brand, p.model = parseDeviceModel(ua, lower)
	p.browserName, p.browserVersion = parseBrowser(ua, lower)
	p.engine, p.engineVersion = parseEngine(ua, lower)
	return p
}

func parsePlatform(ua, lower string) (name, version string) {
	switch {
	case strings.Contains(lower, "windows phone"):
		return "Windows Phone", matchVersion(windowsVersionRe, ua)
	case strings.Contains(lower, "windows"):
		return "Windows", matchVersion(windowsVersionRe, ua)
	case strings.Contains(lower, "android"):
		return "Android", matchVersion(androidVersionRe, ua)
	case strings.Contains(lower, "iphone"), strings.Contains(lower, "ipad"), strings.Contains(lower, "ipod"):
		return "iOS", strings.ReplaceAll(matchVersion(iosVersionRe, ua), "_", ".")
	case strings.Contains(lower, "mac os x"), strings.Contains(lower, "macintosh"):
		return "macOS", strings.ReplaceAll(matchVersion(macVersionRe, ua), "_", ".")
	case strings.Contains(lower, "cros"):
		return "ChromeOS", ""
	case strings.Contains(lower, "linux"), strings.Contains(lower, "x11"):
		return "Linux", ""
	default:
		return UnknownLabel, ""
	}
}

// guessTypeFromKeywords infers the device type from explicit OS/device
// keywords. Tablet keywords are checked first: Android tablets also carry
// "android", and iPads claim "like Mac OS X".
func guessTypeFromKeywords(lower string) string {
	for _, kw := range tabletKeywords {
		if strings.Contains(lower, kw) {
			return DeviceTablet
		}
	}
	for _, kw := range mobileKeywords {
		if strings.Contains(lower, kw) {
			return DeviceMobile
		}
	}
	switch {
	case strings.Contains(lower, "windows"),
		strings.Contains(lower, "macintosh"),
		strings.Contains(lower, "cros"),
		strings.Contains(lower, "x11"),
		strings.Contains(lower, "linux"):
		return DeviceDesktop
	}
	return DeviceUnknown
}

// typeFromAspectRatio classifies from screen geometry when the UA was
// inconclusive. Tall narrow screens read as phones, mid ratios as tablets.
func typeFromAspectRatio(width, height int) string {
	long, short := width, height
	if height > width {
		long, short = height, width
	}
	if short == 0 {
		return DeviceUnknown
	}
	ratio := float64(long) / float64(short)
	switch {
	case ratio >= 1.8:
		return DeviceMobile
	case ratio >= 1.2 && long <= 1400:
		return DeviceTablet
	default:
		return DeviceDesktop
	}
}

func parseDeviceModel(ua, lower string) (brand, model string) {
	switch {
	case strings.Contains(lower, "iphone"):
		return "Apple", "iPhone"
	case strings.Contains(lower, "ipad"):
		return "Apple", "iPad"
	case strings.Contains(lower, "macintosh"):
		return "Apple", "Mac"
	case samsungModelRe.MatchString(ua):
		return "Samsung", samsungModelRe.FindStringSubmatch(ua)[1]
	case pixelModelRe.MatchString(ua):
		return "Google", strings.TrimSpace(pixelModelRe.FindStringSubmatch(ua)[1])
	case strings.Contains(lower, "android"):
		return UnknownLabel, UnknownLabel
	default:
		return UnknownLabel, UnknownLabel
	}
}

// parseBrowser resolves the browser name and version. Order matters:
// Edge and Opera both embed "Chrome", Chrome embeds "Safari".
func parseBrowser(ua, lower string) (name, version string) {
	switch {
	case strings.Contains(ua, "Edg"):
		return "Edge", matchVersion(edgeRe, ua)
	case strings.Contains(ua, "OPR"), strings.Contains(lower, "opera"):
		return "Opera", matchVersion(operaRe, ua)
	case strings.Contains(lower, "firefox"):
		return "Firefox", matchVersion(firefoxRe, ua)
	case strings.Contains(lower, "chrome"), strings.Contains(lower, "crios"):
		return "Chrome", matchVersion(chromeRe, ua)
	case strings.Contains(lower, "safari"):
		return "Safari", matchVersion(safariRe, ua)
	case strings.Contains(lower, "msie"), strings.Contains(lower, "trident"):
		return "Internet Explorer", matchVersion(geckoRe, ua)
	default:
		return UnknownLabel, ""
	}
}

func parseEngine(ua, lower string) (name, version string) {
	switch {
	case strings.Contains(lower, "applewebkit"):
		// Chromium forks report WebKit for compatibility; Blink since 28.
		if strings.Contains(lower, "chrome") || strings.Contains(ua, "Edg") || strings.Contains(ua, "OPR") {
			return "Blink", matchVersion(chromeRe, ua)
		}
		return "WebKit", matchVersion(webkitRe, ua)
	case strings.Contains(lower, "gecko/"):
		return "Gecko", matchVersion(firefoxRe, ua)
	case strings.Contains(lower, "trident"):
		return "Trident", ""
	default:
		return UnknownLabel, ""
	}
}

func matchVersion(re *regexp.Regexp, ua string) string {
	m := re.FindStringSubmatch(ua)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimRight(m[1], "._")
}
