package version

import (
	"runtime/debug"
	"testing"
)

func withBuildInfo(t *testing.T, bi *debug.BuildInfo) {
	t.Helper()
	prev := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) { return bi, bi != nil }
	t.Cleanup(func() { readBuildInfo = prev })
}

func withVars(t *testing.T, v, commit, built string) {
	t.Helper()
	pv, pc, pb := Version, Commit, BuildTime
	Version, Commit, BuildTime = v, commit, built
	t.Cleanup(func() { Version, Commit, BuildTime = pv, pc, pb })
}

func TestResolve(t *testing.T) {
	stamped := &debug.BuildInfo{
		Main: debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2026-10-01T12:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}

	tests := []struct {
		name string
		vars [3]string
		bi   *debug.BuildInfo
		want Info
		str  string
	}{
		{
			name: "no information",
			want: Info{Version: "dev"},
			str:  "dev",
		},
		{
			name: "ldflags win",
			vars: [3]string{"v1.2.0", "abc", "2026-01-01"},
			bi:   stamped,
			want: Info{Version: "v1.2.0", Commit: "abc", BuildTime: "2026-01-01", Modified: true},
			str:  "v1.2.0 (abc+dirty)",
		},
		{
			name: "vcs stamp fills blanks",
			bi:   stamped,
			want: Info{Version: "dev", Commit: "0123456789abcdef0123", BuildTime: "2026-10-01T12:00:00Z", Modified: true},
			str:  "dev (0123456789ab+dirty)",
		},
		{
			name: "module version",
			bi:   &debug.BuildInfo{Main: debug.Module{Version: "v0.3.1"}},
			want: Info{Version: "v0.3.1"},
			str:  "v0.3.1",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			withVars(t, tc.vars[0], tc.vars[1], tc.vars[2])
			withBuildInfo(t, tc.bi)
			if got := Resolve(); got != tc.want {
				t.Fatalf("Resolve() = %+v, want %+v", got, tc.want)
			}
			if got := String(); got != tc.str {
				t.Fatalf("String() = %q, want %q", got, tc.str)
			}
		})
	}
}
