package policy

import (
	"math"

	"github.com/staffhub/platform/internal/domain"
)

// DefaultConsistencyThreshold is the similarity score at or above which two
// fingerprints are treated as the same device.
const DefaultConsistencyThreshold = 0.8

// displayTolerancePx allows reported screen dimensions to drift (browser
// zoom, rotation rounding) without breaking the match.
const displayTolerancePx = 50

// Similarity computes a weighted match score in [0,1] between two
// fingerprints. Dimensions missing on either side are excluded from the
// applicable total; with no applicable dimensions the score is 0.
func Similarity(a, b domain.DeviceFingerprint) float64 {
	var matched, applicable float64

	dim := func(weight float64, present, match bool) {
		if !present {
			return
		}
		applicable += weight
		if match {
			matched += weight
		}
	}

	dim(1, a.Device.Type != "" && b.Device.Type != "", a.Device.Type == b.Device.Type)
	dim(1, a.Device.Platform != "" && b.Device.Platform != "", a.Device.Platform == b.Device.Platform)
	dim(1, a.Browser.Name != "" && b.Browser.Name != "", a.Browser.Name == b.Browser.Name)

	dim(1, a.Network.IPAddress != "" && b.Network.IPAddress != "", a.Network.IPAddress == b.Network.IPAddress)
	dim(1, a.Network.Timezone != "" && b.Network.Timezone != "", a.Network.Timezone == b.Network.Timezone)

	dim(2, a.HasDisplayGeometry() && b.HasDisplayGeometry(),
		withinTolerance(a.Display.Width, b.Display.Width) && withinTolerance(a.Display.Height, b.Display.Height))

	dim(1, a.Metadata.FingerprintHash != "" && b.Metadata.FingerprintHash != "",
		a.Metadata.FingerprintHash == b.Metadata.FingerprintHash)

	if applicable == 0 {
		return 0
	}
	return matched / applicable
}

func withinTolerance(a, b int) bool {
	return math.Abs(float64(a-b)) <= displayTolerancePx
}

// IsConsistent reports whether two fingerprints plausibly come from the same
// device.
func IsConsistent(a, b domain.DeviceFingerprint, threshold float64) bool {
	return Similarity(a, b) >= threshold
}

// RiskLevelFor maps a persistent 0-100 identity risk score onto the 4-tier
// scale. Monotonic: 80+ critical, 60+ high, 30+ medium, else low.
func RiskLevelFor(score int) domain.RiskLevel {
	switch {
	case score >= 80:
		return domain.RiskCritical
	case score >= 60:
		return domain.RiskHigh
	case score >= 30:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

// Login flags and their flag-sum contributions.
const (
	FlagNewDevice          = "new_device"
	FlagLocationChange     = "location_change"
	FlagUnknownDevice      = "unknown_device"
	FlagLimitedFingerprint = "limited_fingerprint"
)

// EvaluateLoginFlags compares a login's fingerprint against the most recent
// prior fingerprint and produces the one-shot advisory verdict. The flag-sum
// scale (>=5 high, >=3 medium, >=1 low, 0 none) is coarser than, and distinct
// from, the persistent identity risk score.
func EvaluateLoginFlags(current domain.DeviceFingerprint, previous []domain.DeviceFingerprint) domain.LoginVerdict {
	if len(previous) == 0 {
		return domain.LoginVerdict{IsSuspicious: false, RiskLevel: domain.RiskNone}
	}

	mostRecent := previous[0]
	var flags []string
	var sum int

	if !IsConsistent(current, mostRecent, DefaultConsistencyThreshold) {
		flags = append(flags, FlagNewDevice)
		sum += 2
	}
	if current.Network.Country != "" && mostRecent.Network.Country != "" &&
		current.Network.Country != mostRecent.Network.Country {
		flags = append(flags, FlagLocationChange)
		sum += 3
	}
	if current.Device.Type == "unknown" {
		flags = append(flags, FlagUnknownDevice)
		sum++
	}
	if !current.HasCanvasOrWebGL() {
		flags = append(flags, FlagLimitedFingerprint)
		sum++
	}

	level := flagSumLevel(sum)
	return domain.LoginVerdict{
		IsSuspicious: level.AtLeast(domain.RiskMedium),
		Flags:        flags,
		RiskLevel:    level,
	}
}

func flagSumLevel(sum int) domain.RiskLevel {
	switch {
	case sum >= 5:
		return domain.RiskHigh
	case sum >= 3:
		return domain.RiskMedium
	case sum >= 1:
		return domain.RiskLow
	default:
		return domain.RiskNone
	}
}
