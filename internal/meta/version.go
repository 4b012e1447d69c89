package meta

import (
	"fmt"
	"runtime"
	"strings"
)

// Info describes how a chatter binary was built. Most of it is stamped in by
// the linker, see the vars below.
type Info struct {
	Version   string `json:"version"`
	Build     string `json:"build,omitempty"`
	Branch    string `json:"branch,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
	Platform  string `json:"platform"`
	GoVersion string `json:"go_version"`
}

// These will be filled in using the linker -X flag, e.g.
//
//	go build -ldflags "-X github.com/luma/chatter/internal/meta.Version=1.0.0"
var (
	// Version as an arbitrary string
	Version = "dev"

	// Build is the Git sha from when we are building
	Build string

	// Branch is the Git branch that we are building from
	Branch string

	// BuildTimeUTC is the build time in UTC (year/month/day hour:min:sec)
	BuildTimeUTC string

	platform = fmt.Sprintf("%s %s", runtime.GOOS, runtime.GOARCH)
)

// GetInfo returns an Info struct populated with the build information.
func GetInfo() Info {
	return Info{
		GoVersion: runtime.Version(),
		Version:   Version,
		Build:     Build,
		Branch:    Branch,
		BuildTime: BuildTimeUTC,
		Platform:  platform,
	}
}

// String renders the info on one line, leaving out anything not stamped in.
func (i Info) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "chatter %s", i.Version)

	if i.Build != "" {
		fmt.Fprintf(&b, " (%s", i.Build)
		if i.Branch != "" {
			fmt.Fprintf(&b, " on %s", i.Branch)
		}
		b.WriteString(")")
	}

	if i.BuildTime != "" {
		fmt.Fprintf(&b, " built %s", i.BuildTime)
	}

	fmt.Fprintf(&b, " %s %s", i.GoVersion, i.Platform)
	return b.String()
}
