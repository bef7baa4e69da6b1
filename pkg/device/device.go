package device

import (
	"net"
	"net/http"
	"regexp"
	"strings"
)

// Info carries best-effort device metadata extracted from request
// headers. Every field is optional; absence is never an error.
type Info struct {
	DeviceName string `json:"deviceName,omitempty"`
	DeviceType string `json:"deviceType,omitempty"`
	UserAgent  string `json:"userAgent,omitempty"`
	IPAddress  string `json:"ipAddress,omitempty"`
}

// Device types form a closed set.
const (
	TypeMobile  = "mobile"
	TypeTablet  = "tablet"
	TypeDesktop = "desktop"
	TypeUnknown = "unknown"
)

var (
	mobileRe  = regexp.MustCompile(`(?i)mobile|android|iphone`)
	tabletRe  = regexp.MustCompile(`(?i)tablet|ipad`)
	browserRe = regexp.MustCompile(`(?i)(chrome|firefox|safari|edge|opera)[/\s](\d+)`)
	osRe      = regexp.MustCompile(`(?i)(windows|mac|linux|android|ios)`)
)

// Extract derives device metadata from the request. The first
// X-Forwarded-For hop wins over the socket address so the limiter and
// session records see the client, not the proxy.
func Extract(r *http.Request) Info {
	info := Info{UserAgent: r.UserAgent()}

	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		info.IPAddress = strings.TrimSpace(strings.Split(fwd, ",")[0])
	} else if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		info.IPAddress = host
	} else {
		info.IPAddress = r.RemoteAddr
	}

	if info.UserAgent == "" {
		info.DeviceType = TypeUnknown
		return info
	}

	switch {
	case tabletRe.MatchString(info.UserAgent):
		info.DeviceType = TypeTablet
	case mobileRe.MatchString(info.UserAgent):
		info.DeviceType = TypeMobile
	default:
		info.DeviceType = TypeDesktop
	}

	browser := browserRe.FindString(info.UserAgent)
	os := osRe.FindString(info.UserAgent)
	switch {
	case browser != "" && os != "":
		info.DeviceName = os + " - " + browser
	case os != "":
		info.DeviceName = os
	default:
		info.DeviceName = "Unknown Device"
	}

	return info
}
