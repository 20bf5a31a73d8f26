// Package appversion describes the running build.
package appversion

import (
	"fmt"
	"runtime"

	"github.com/crowdsecurity/go-cs-lib/version"
	"github.com/wasilibs/go-re2"
)

var (
	Codename string
	Libre2   = "WebAssembly"
)

var semverPrefix = re2.MustCompile(`^v\d+\.\d+\.\d+`)

func UserAgent() string {
	return "sentinel/" + version.String() + "-" + runtime.GOOS
}

func FullString() string {
	ret := fmt.Sprintf("version: %s\n", version.String())
	ret += fmt.Sprintf("Codename: %s\n", Codename)
	ret += fmt.Sprintf("BuildDate: %s\n", version.BuildDate)
	ret += fmt.Sprintf("GoVersion: %s\n", version.GoVersion)
	ret += fmt.Sprintf("Platform: %s\n", version.System)
	ret += fmt.Sprintf("libre2: %s\n", Libre2)
	ret += fmt.Sprintf("User-Agent: %s\n", UserAgent())

	return ret
}

// StripTags removes what follows the semantic version (v1.2.3-rc1 -> v1.2.3).
// Strings that do not start with a semantic version are returned as is.
func StripTags(v string) string {
	if m := semverPrefix.FindString(v); m != "" {
		return m
	}

	return v
}
