package weft

// Code in this file was split out for readability.
// No behavior changes intended.

import (
	"runtime"

	"github.com/gookit/color"
)

// Global variables set at build time or by Main before the engine runs.
var (
	ConfigFile = "/etc/weft.conf"

	version   = "dev" // overridden at build time via -ldflags
	arch      = runtime.GOARCH
	buildDate = "unknown" // overridden at build time

	// UserExec is assigned once in Main and threaded into the Executor and
	// Fetcher built for whichever subcommand is running, mirroring the
	// teacher's UserExec global.
	UserExec *ProcessRunner
)

// color helpers, mirrored from the teacher's gookit/color usage.
var (
	colWarn    = color.Warn
	colSuccess = color.HEX("#1976D2")
	colArrow   = color.HEX("#FFEB3B")
	colNote    = color.Tag("notice")
)
