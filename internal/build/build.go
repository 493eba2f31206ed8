// Package build holds version information set by the linker.
package build

import (
	"fmt"
	"time"
)

var (
	commit  = ""
	date    = ""
	version = "dev"
)

func init() {
	date, _ := time.Parse(time.RFC3339, date)

	Current = Build{
		Commit:  commit,
		Version: version,
		Date:    date,
	}
}

var Current Build

type Build struct {
	Commit  string    `yaml:"commit,omitempty"`
	Version string    `yaml:"version"`
	Date    time.Time `yaml:"date,omitempty"`
}

// String is the text shown by --version.
func (b Build) String() string {
	if b.Commit == "" {
		return b.Version
	}
	if b.Date.IsZero() {
		return fmt.Sprintf("%s (%s)", b.Version, b.Commit)
	}
	return fmt.Sprintf("%s (%s, %s)", b.Version, b.Commit, b.Date.Format(time.DateOnly))
}
