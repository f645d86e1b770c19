// Package logging builds the process-wide go-pkgz/lgr logger, with the
// level pulled from configuration instead of hard-coded.
package logging

import (
	"github.com/go-pkgz/lgr"
)

// New builds a logger for level ("debug", "info", or anything else for
// the default info-and-above behavior). Debug turns on lgr.Debug and
// caller-location output; anything else gets timestamps and level braces.
func New(level string) lgr.L {
	opts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if level == "debug" {
		opts = append(opts, lgr.Debug, lgr.CallerFile, lgr.CallerFunc)
	}
	return lgr.New(opts...)
}
