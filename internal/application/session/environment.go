// internal/application/session/environment.go
package session

import "strings"

// embeddedBrowserMarkers are user-agent fragments of known in-app browsers
// whose popup support is unreliable.
var embeddedBrowserMarkers = []string{
	"fbav",
	"fban",
	"instagram",
	"line/",
	"twitter",
	"tiktok",
	"snapchat",
	"; wv;",
	"webview",
	"duckduckgo",
	"gsa",
	"miuibrowser",
	"heytapbrowser",
	"oppobrowser",
	"opxbrowser",
}

// EnvironmentInfo is a value implementation of Environment, derived once from
// whatever the embedder knows about its runtime.
type EnvironmentInfo struct {
	Restricted bool
	Standalone bool
	Embedded   bool
}

func (e EnvironmentInfo) RestrictedOS() bool    { return e.Restricted }
func (e EnvironmentInfo) StandaloneApp() bool   { return e.Standalone }
func (e EnvironmentInfo) EmbeddedBrowser() bool { return e.Embedded }

// DetectEnvironment classifies a runtime from its user agent, platform string,
// touch-point count and standalone flag.
//
// Restricted OS means iOS/iPadOS, including iPadOS 13+ which reports a desktop
// platform but exposes multi-touch.
func DetectEnvironment(userAgent, platform string, maxTouchPoints int, standalone bool) EnvironmentInfo {
	ua := strings.ToLower(strings.TrimSpace(userAgent))

	restricted := strings.Contains(ua, "ipad") ||
		strings.Contains(ua, "iphone") ||
		strings.Contains(ua, "ipod") ||
		(platform == "MacIntel" && maxTouchPoints > 1)

	embedded := false
	for _, marker := range embeddedBrowserMarkers {
		if strings.Contains(ua, marker) {
			embedded = true
			break
		}
	}

	return EnvironmentInfo{
		Restricted: restricted,
		Standalone: standalone,
		Embedded:   embedded,
	}
}
