package version

import (
	"runtime/debug"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withBuildInfo(t *testing.T, info *debug.BuildInfo) {
	t.Helper()
	orig := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) { return info, info != nil }
	t.Cleanup(func() { readBuildInfo = orig })
}

func withVars(t *testing.T, v, commit string) {
	t.Helper()
	origV, origC := Version, GitCommit
	Version, GitCommit = v, commit
	t.Cleanup(func() { Version, GitCommit = origV, origC })
}

func vcsInfo(revision, modified string) *debug.BuildInfo {
	info := &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}
	if revision != "" {
		info.Settings = append(info.Settings, debug.BuildSetting{Key: "vcs.revision", Value: revision})
	}
	if modified != "" {
		info.Settings = append(info.Settings, debug.BuildSetting{Key: "vcs.modified", Value: modified})
	}
	return info
}

func TestGetVersion(t *testing.T) {
	tests := []struct {
		name    string
		version string
		info    *debug.BuildInfo
		want    string
	}{
		{"ldflags", "v1.2.3", nil, "v1.2.3"},
		{"module version", "dev", &debug.BuildInfo{Main: debug.Module{Version: "v0.4.0"}}, "v0.4.0"},
		{"vcs revision", "dev", vcsInfo("abcdef1234", ""), "dev-abcdef1"},
		{"nothing", "dev", nil, "dev"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withVars(t, tt.version, "unknown")
			withBuildInfo(t, tt.info)
			assert.Equal(t, tt.want, GetVersion())
		})
	}
}

func TestShortVersion(t *testing.T) {
	withBuildInfo(t, nil)

	withVars(t, "v1.0.0", "0123456789")
	assert.Equal(t, "v1.0.0 (0123456)", GetShortVersion())
	assert.True(t, IsRelease())

	withVars(t, "dev", "0123456789")
	assert.Equal(t, "dev-0123456", GetShortVersion())
	assert.False(t, IsRelease())

	withVars(t, "v1.0.0", "unknown")
	assert.Equal(t, "v1.0.0", GetShortVersion())
}

func TestIsDirty(t *testing.T) {
	withBuildInfo(t, vcsInfo("abc", "true"))
	assert.True(t, IsDirty())

	withBuildInfo(t, vcsInfo("abc", "false"))
	assert.False(t, IsDirty())

	withBuildInfo(t, nil)
	assert.False(t, IsDirty())
}

func TestParseISOTime(t *testing.T) {
	want := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	assert.True(t, want.Equal(parseISOTime("2024-05-01T12:30:00Z")))
	assert.True(t, want.Equal(parseISOTime("2024-05-01 12:30:00")))
	assert.True(t, parseISOTime("unknown").IsZero())
	assert.True(t, parseISOTime("yesterday").IsZero())
}

func TestGetBuildInfo(t *testing.T) {
	withVars(t, "v2.0.0", "feedface00")
	info := GetBuildInfo()
	assert.Equal(t, "v2.0.0", info.Version)
	assert.Equal(t, "feedface00", info.GitCommit)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
}
