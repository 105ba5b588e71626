// Package version provides build information for nesmap
package version

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"time"
)

var (
	// Set at build time via -ldflags
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// BuildInfo contains detailed build information
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	Modified  bool   `json:"modified"`
}

// GetBuildInfo returns build information, filling gaps from the VCS stamp
func GetBuildInfo() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range bi.Settings {
			switch setting.Key {
			case "vcs.revision":
				if info.GitCommit == "unknown" {
					info.GitCommit = setting.Value
				}
			case "vcs.time":
				if info.BuildTime == "unknown" {
					info.BuildTime = setting.Value
				}
			case "vcs.modified":
				info.Modified = setting.Value == "true"
			}
		}
	}

	return info
}

// ShortCommit returns the first seven characters of the commit
func (b BuildInfo) ShortCommit() string {
	if len(b.GitCommit) > 7 {
		return b.GitCommit[:7]
	}
	return b.GitCommit
}

// String formats the build information on one line
func (b BuildInfo) String() string {
	s := fmt.Sprintf("nesmap %s", b.Version)
	if b.GitCommit != "unknown" {
		s += fmt.Sprintf(" (commit %s", b.ShortCommit())
		if b.Modified {
			s += ", modified"
		}
		s += ")"
	}
	if b.BuildTime != "unknown" {
		if t, err := time.Parse(time.RFC3339, b.BuildTime); err == nil {
			s += " built " + t.Format("2006-01-02 15:04")
		} else {
			s += " built " + b.BuildTime
		}
	}
	return s + fmt.Sprintf(" with %s for %s", b.GoVersion, b.Platform)
}

// GetVersion returns a simple version string
func GetVersion() string {
	info := GetBuildInfo()
	if info.Version == "dev" && info.GitCommit != "unknown" {
		return "dev-" + info.ShortCommit()
	}
	return info.Version
}

// PrintBuildInfo writes formatted build information
func PrintBuildInfo(w io.Writer) {
	info := GetBuildInfo()
	fmt.Fprintf(w, "nesmap - NES map streaming and screen transitions\n")
	fmt.Fprintf(w, "Version:     %s\n", info.Version)
	fmt.Fprintf(w, "Git Commit:  %s\n", info.GitCommit)
	fmt.Fprintf(w, "Build Time:  %s\n", info.BuildTime)
	fmt.Fprintf(w, "Go Version:  %s\n", info.GoVersion)
	fmt.Fprintf(w, "Platform:    %s\n", info.Platform)
}
