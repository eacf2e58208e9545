package domain

import "time"

// DeviceInfo classifies the physical device parsed from the user agent.
type DeviceInfo struct {
	Type            string `json:"type"` // mobile, tablet, desktop, unknown
	Brand           string `json:"brand"`
	Model           string `json:"model"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platform_version"`
}

// BrowserInfo classifies the browser and its rendering engine.
type BrowserInfo struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	Engine        string `json:"engine"`
	EngineVersion string `json:"engine_version"`
}

// NetworkInfo holds IP-derived network attributes. Country and ISP come from
// the geolocation provider and may be empty when the lookup is unavailable.
type NetworkInfo struct {
	IPAddress string `json:"ip_address"`
	ISP       string `json:"isp"`
	Country   string `json:"country"`
	Timezone  string `json:"timezone"`
}

// DisplayInfo holds client-reported screen geometry. Zero width/height means
// the client supplied no hints.
type DisplayInfo struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	PixelRatio  float64 `json:"pixel_ratio"`
	ColorDepth  int     `json:"color_depth"`
	Orientation string  `json:"orientation"`
}

// HardwareInfo holds client-reported hardware hints.
type HardwareInfo struct {
	CPUCores int      `json:"cpu_cores"`
	Memory   float64  `json:"memory"` // GB, as reported by the client
	Battery  float64  `json:"battery"`
	Sensors  []string `json:"sensors"`
}

// ClientSignals holds browser-computed entropy sources. Empty hashes mean the
// client could not (or chose not to) compute them.
type ClientSignals struct {
	CanvasHash string   `json:"canvas_hash"`
	WebGLHash  string   `json:"webgl_hash"`
	AudioHash  string   `json:"audio_hash"`
	Fonts      []string `json:"fonts"`
	Plugins    []string `json:"plugins"`
}

// MobileInfo holds native-app attributes for mobile clients.
type MobileInfo struct {
	IsMobile    bool   `json:"is_mobile"`
	IsTablet    bool   `json:"is_tablet"`
	IsNativeApp bool   `json:"is_native_app"`
	AppVersion  string `json:"app_version"`
	DeviceID    string `json:"device_id"`
	PushToken   string `json:"push_token"`
}

// SecurityInfo holds privacy-adjacent request headers.
type SecurityInfo struct {
	DoNotTrack bool   `json:"do_not_track"`
	Language   string `json:"language"`
	Encoding   string `json:"encoding"`
}

// FingerprintMetadata records provenance of the fingerprint.
type FingerprintMetadata struct {
	Timestamp       time.Time `json:"timestamp"`
	RawUserAgent    string    `json:"raw_user_agent"`
	FingerprintHash string    `json:"fingerprint_hash"`
}

// DeviceFingerprint is an immutable value object summarizing a client's
// device, browser, and network signals. It is built fresh on every login,
// never mutated, and compared by value. Missing signals are zero values so
// downstream comparison code never branches on absent fields.
type DeviceFingerprint struct {
	Device        DeviceInfo          `json:"device"`
	Browser       BrowserInfo         `json:"browser"`
	Network       NetworkInfo         `json:"network"`
	Display       DisplayInfo         `json:"display"`
	Hardware      HardwareInfo        `json:"hardware"`
	ClientSignals ClientSignals       `json:"client_signals"`
	Mobile        MobileInfo          `json:"mobile"`
	Security      SecurityInfo        `json:"security"`
	Metadata      FingerprintMetadata `json:"metadata"`
}

// HasDisplayGeometry reports whether the client supplied screen dimensions.
func (fp DeviceFingerprint) HasDisplayGeometry() bool {
	return fp.Display.Width > 0 && fp.Display.Height > 0
}

// HasCanvasOrWebGL reports whether any rendering-entropy signal is present.
func (fp DeviceFingerprint) HasCanvasOrWebGL() bool {
	return fp.ClientSignals.CanvasHash != "" || fp.ClientSignals.WebGLHash != ""
}
