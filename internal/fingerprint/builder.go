package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/staffhub/platform/internal/domain"
)

// RawSignals are the server-observed inputs: the user-agent string, the
// client IP, and a header map. None of the fields are required.
type RawSignals struct {
	UserAgent string
	IPAddress string
	ISP       string
	Country   string
	Headers   map[string]string
}

// ClientHints are optional client-supplied signals collected by the frontend
// or native app. A nil ClientHints is valid and common.
type ClientHints struct {
	ScreenWidth  int      `json:"screen_width"`
	ScreenHeight int      `json:"screen_height"`
	PixelRatio   float64  `json:"pixel_ratio"`
	ColorDepth   int      `json:"color_depth"`
	Orientation  string   `json:"orientation"`
	Timezone     string   `json:"timezone"`
	CanvasHash   string   `json:"canvas_hash"`
	WebGLHash    string   `json:"webgl_hash"`
	AudioHash    string   `json:"audio_hash"`
	Fonts        []string `json:"fonts"`
	Plugins      []string `json:"plugins"`
	CPUCores     int      `json:"cpu_cores"`
	Memory       float64  `json:"memory"`
	Battery      float64  `json:"battery"`
	Sensors      []string `json:"sensors"`
	IsNativeApp  bool     `json:"is_native_app"`
	AppVersion   string   `json:"app_version"`
	DeviceID     string   `json:"device_id"`
	PushToken    string   `json:"push_token"`
}

// Build turns raw request signals into a fully-populated DeviceFingerprint.
// Missing data is represented as zero values, never absent fields, so
// comparison code downstream never branches on shape. Build never panics:
// any internal failure degrades to a minimal fingerprint carrying only the
// device-type guess, the IP, and a hash of the user agent.
func Build(raw RawSignals, hints *ClientHints) (fp domain.DeviceFingerprint) {
	defer func() {
		if r := recover(); r != nil {
			fp = minimalFingerprint(raw)
		}
	}()
	return build(raw, hints)
}

func build(raw RawSignals, hints *ClientHints) domain.DeviceFingerprint {
	ua := parseUserAgent(raw.UserAgent)

	fp := domain.DeviceFingerprint{
		Device: domain.DeviceInfo{
			Type:            ua.deviceType,
			Brand:           ua.brand,
			Model:           ua.model,
			Platform:        ua.platform,
			PlatformVersion: ua.platformVersion,
		},
		Browser: domain.BrowserInfo{
			Name:          ua.browserName,
			Version:       ua.browserVersion,
			Engine:        ua.engine,
			EngineVersion: ua.engineVersion,
		},
		Network: domain.NetworkInfo{
			IPAddress: raw.IPAddress,
			ISP:       raw.ISP,
			Country:   raw.Country,
		},
		Security: domain.SecurityInfo{
			DoNotTrack: headerValue(raw.Headers, "DNT") == "1",
			Language:   primaryLanguage(headerValue(raw.Headers, "Accept-Language")),
			Encoding:   headerValue(raw.Headers, "Accept-Encoding"),
		},
		Mobile: domain.MobileInfo{
			IsMobile: ua.deviceType == DeviceMobile,
			IsTablet: ua.deviceType == DeviceTablet,
		},
		Metadata: domain.FingerprintMetadata{
			Timestamp:    time.Now(),
			RawUserAgent: raw.UserAgent,
		},
	}

	if hints != nil {
		fp.Display = domain.DisplayInfo{
			Width:       hints.ScreenWidth,
			Height:      hints.ScreenHeight,
			PixelRatio:  hints.PixelRatio,
			ColorDepth:  hints.ColorDepth,
			Orientation: hints.Orientation,
		}
		fp.Hardware = domain.HardwareInfo{
			CPUCores: hints.CPUCores,
			Memory:   hints.Memory,
			Battery:  hints.Battery,
			Sensors:  hints.Sensors,
		}
		fp.ClientSignals = domain.ClientSignals{
			CanvasHash: hints.CanvasHash,
			WebGLHash:  hints.WebGLHash,
			AudioHash:  hints.AudioHash,
			Fonts:      hints.Fonts,
			Plugins:    hints.Plugins,
		}
		fp.Network.Timezone = hints.Timezone
		fp.Mobile.IsNativeApp = hints.IsNativeApp
		fp.Mobile.AppVersion = hints.AppVersion
		fp.Mobile.DeviceID = hints.DeviceID
		fp.Mobile.PushToken = hints.PushToken

		// Screen aspect ratio only classifies when the UA gave nothing;
		// an explicit keyword match always wins.
		if fp.Device.Type == DeviceUnknown && hints.ScreenWidth > 0 && hints.ScreenHeight > 0 {
			fp.Device.Type = typeFromAspectRatio(hints.ScreenWidth, hints.ScreenHeight)
			fp.Mobile.IsMobile = fp.Device.Type == DeviceMobile
			fp.Mobile.IsTablet = fp.Device.Type == DeviceTablet
		}
	}

	fp.Metadata.FingerprintHash = Hash(fp)
	return fp
}

// stableProjection is the canonical subset of signals that feed the hash.
// Field order is fixed; two fingerprints with equal inputs hash identically.
type stableProjection struct {
	UserAgent  string `json:"ua"`
	Width      int    `json:"w"`
	Height     int    `json:"h"`
	Timezone   string `json:"tz"`
	Language   string `json:"lang"`
	CanvasHash string `json:"canvas"`
	WebGLHash  string `json:"webgl"`
}

// Hash computes the deterministic one-way digest of the stable signal
// subset. Missing signals degrade confidence but never block computation.
func Hash(fp domain.DeviceFingerprint) string {
	proj := stableProjection{
		UserAgent:  fp.Metadata.RawUserAgent,
		Width:      fp.Display.Width,
		Height:     fp.Display.Height,
		Timezone:   fp.Network.Timezone,
		Language:   fp.Security.Language,
		CanvasHash: fp.ClientSignals.CanvasHash,
		WebGLHash:  fp.ClientSignals.WebGLHash,
	}
	data, err := json.Marshal(proj)
	if err != nil {
		data = []byte(fp.Metadata.RawUserAgent)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// minimalFingerprint is the degraded fallback: device-type guess, IP, and a
// hash over the bare user agent.
func minimalFingerprint(raw RawSignals) domain.DeviceFingerprint {
	fp := domain.DeviceFingerprint{
		Device:  domain.DeviceInfo{Type: guessTypeFromKeywords(strings.ToLower(raw.UserAgent)), Brand: UnknownLabel, Model: UnknownLabel, Platform: UnknownLabel},
		Browser: domain.BrowserInfo{Name: UnknownLabel},
		Network: domain.NetworkInfo{IPAddress: raw.IPAddress},
		Metadata: domain.FingerprintMetadata{
			Timestamp:    time.Now(),
			RawUserAgent: raw.UserAgent,
		},
	}
	fp.Metadata.FingerprintHash = Hash(fp)
	return fp
}

func headerValue(headers map[string]string, key string) string {
	if headers == nil {
		return ""
	}
	if v, ok := headers[key]; ok {
		return v
	}
	// header maps arrive with inconsistent casing depending on the client
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// primaryLanguage extracts the first language tag from an Accept-Language
// header, e.g. "en-US,en;q=0.9" -> "en-US".
func primaryLanguage(acceptLanguage string) string {
	if acceptLanguage == "" {
		return ""
	}
	first := acceptLanguage
	if i := strings.IndexAny(first, ",;"); i >= 0 {
		first = first[:i]
	}
	return strings.TrimSpace(first)
}
