package buildinfo

import (
	"runtime"
	"runtime/debug"
	"sync"
)

// Set with -ldflags "-X routeopt/internal/buildinfo.Version=..." at release time.
var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

var fillOnce sync.Once

// fill falls back to the VCS stamp embedded by the go tool.
func fill() {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == "" {
				Commit = s.Value
			}
		case "vcs.time":
			if BuiltAt == "" {
				BuiltAt = s.Value
			}
		}
	}
}

func Info() map[string]string {
	fillOnce.Do(fill)
	return map[string]string{
		"version":   Version,
		"commit":    Commit,
		"builtAt":   BuiltAt,
		"goVersion": runtime.Version(),
	}
}
