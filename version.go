package jacobi

import (
	"fmt"
	"runtime/debug"
)

const root = "github.com/LynnColeArt/guda-jacobi"

// Version returns the version of the module and its checksum. The returned
// values are only valid in binaries built with module support.
func Version() (version, sum string) {
	b, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	if b.Main.Path == root {
		return b.Main.Version, b.Main.Sum
	}
	for _, m := range b.Deps {
		if m.Path != root {
			continue
		}
		if m.Replace != nil {
			switch {
			case m.Replace.Version != "" && m.Replace.Path != "":
				return fmt.Sprintf("%s=>%s %s", m.Version, m.Replace.Path, m.Replace.Version), m.Replace.Sum
			case m.Replace.Version != "":
				return fmt.Sprintf("%s=>%s", m.Version, m.Replace.Version), m.Replace.Sum
			case m.Replace.Path != "":
				return fmt.Sprintf("%s=>%s", m.Version, m.Replace.Path), m.Replace.Sum
			default:
				return m.Version + "*", m.Sum + "*"
			}
		}
		return m.Version, m.Sum
	}
	return "", ""
}
