package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func stubBuildInfo(t *testing.T, bi *debug.BuildInfo) {
	t.Helper()
	orig := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) { return bi, bi != nil }
	t.Cleanup(func() { readBuildInfo = orig })
}

func TestGet_FallsBackToVCSStamp(t *testing.T) {
	stubBuildInfo(t, &debug.BuildInfo{
		Main: debug.Module{Version: "v1.4.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2026-10-01T09:00:00Z"},
		},
	})

	info := Get()
	assert.Equal(t, Info{Version: "v1.4.0", Commit: "0123456789abcdef0123", Date: "2026-10-01T09:00:00Z"}, info)
	assert.Equal(t, "v1.4.0 (commit 0123456789ab, built 2026-10-01T09:00:00Z)", info.String())
}

func TestGet_LdflagsWin(t *testing.T) {
	stubBuildInfo(t, &debug.BuildInfo{
		Main:     debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "ffff"}},
	})
	Version, Commit = "v2.0.0", "abc123"
	t.Cleanup(func() { Version, Commit = "dev", "unknown" })

	info := Get()
	assert.Equal(t, "v2.0.0", info.Version)
	assert.Equal(t, "abc123", info.Commit)
	assert.Equal(t, "unknown", info.Date)
}

func TestGet_NoBuildInfo(t *testing.T) {
	stubBuildInfo(t, nil)
	assert.Equal(t, Info{Version: "dev", Commit: "unknown", Date: "unknown"}, Get())
}
