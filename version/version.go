package version

import (
	"runtime/debug"
	"strings"
	"time"
)

// Set at build time using -ldflags.
var (
	Version   = "dev"
	GitCommit = ""
	BuildTime = ""
)

// Info describes the running build.
type Info struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit,omitempty"`
	GoVersion string    `json:"go_version"`
	BuildDate time.Time `json:"build_date,omitzero"`
	Dirty     bool      `json:"dirty,omitempty"`
}

// Get returns the build information.
func Get() Info {
	info := Info{Version: Version, GitCommit: GitCommit}
	if t, err := time.Parse(time.RFC3339, BuildTime); err == nil {
		info.BuildDate = t
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		info.GoVersion = bi.GoVersion
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.GitCommit == "" {
					info.GitCommit = s.Value
				}
			case "vcs.modified":
				info.Dirty = s.Value == "true"
			case "vcs.time":
				if info.BuildDate.IsZero() {
					if t, err := time.Parse(time.RFC3339, s.Value); err == nil {
						info.BuildDate = t
					}
				}
			}
		}
	}
	if len(info.GitCommit) > 7 {
		info.GitCommit = info.GitCommit[:7]
	}
	return info
}

// IsRelease reports whether the build carries a real version.
func (i Info) IsRelease() bool {
	return i.Version != "" && i.Version != "dev" && !i.Dirty
}

// Short returns version[-commit][-dirty].
func (i Info) Short() string {
	parts := []string{i.Version}
	if i.GitCommit != "" {
		parts = append(parts, i.GitCommit)
	}
	if i.Dirty {
		parts = append(parts, "dirty")
	}
	return strings.Join(parts, "-")
}
