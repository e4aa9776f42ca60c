package deviceinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	chromeWindowsUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	iphoneSafariUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
)

func TestSummary_KnownBrowser(t *testing.T) {
	got := Summary(chromeWindowsUA)
	assert.Contains(t, got, "Chrome 120")
	assert.Contains(t, got, "on Windows")
	assert.Contains(t, got, "(desktop)")
}

func TestSummary_Unknown(t *testing.T) {
	assert.Equal(t, "Unknown Device", Summary(""))
	assert.Equal(t, "Unknown Device", Summary("   "))
	assert.Equal(t, "Unknown Device", Summary("definitely-not-a-user-agent"))
}

func TestDetail_Defaults(t *testing.T) {
	info := Detail("")
	assert.Equal(t, "Unknown Browser", info.Browser)
	assert.Equal(t, "Unknown OS", info.OS)
	assert.Equal(t, TypeDesktop, info.DeviceType)
	assert.Empty(t, info.Raw)

	info = Detail("garbage")
	assert.Equal(t, TypeDesktop, info.DeviceType)
	assert.Equal(t, "garbage", info.Raw)
}

func TestDetail_UncorroboratedTokenStaysUnknown(t *testing.T) {
	// An arbitrary product token must not be reported as a browser name.
	info := Detail("definitely-not-a-user-agent")
	assert.Equal(t, "Unknown Browser", info.Browser)
	assert.Empty(t, info.BrowserVersion)
	assert.Equal(t, "Unknown OS", info.OS)
}

func TestDetail_ChromeDesktop(t *testing.T) {
	info := Detail(chromeWindowsUA)
	assert.Equal(t, "Chrome", info.Browser)
	assert.Equal(t, "120", info.BrowserVersion)
	assert.Equal(t, "Windows", info.OS)
	assert.Equal(t, TypeDesktop, info.DeviceType)
}

func TestDetail_MobileSafari(t *testing.T) {
	info := Detail(iphoneSafariUA)
	assert.Equal(t, TypeMobile, info.DeviceType)
	assert.Equal(t, "iOS", info.OS)
}

func TestIsMobile(t *testing.T) {
	assert.True(t, IsMobile(iphoneSafariUA))
	assert.False(t, IsMobile(chromeWindowsUA))
	assert.False(t, IsMobile(""))
}
