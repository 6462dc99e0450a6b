package weft

// Code in this file was split out for readability.
// No behavior changes intended.

import "fmt"

// Verbosity is the engine-wide log level, set once from the CLI's -v/-vv/-q
// flags before the executor runs.
type Verbosity int

const (
	Silent Verbosity = iota
	Normal
	Verbose
	DebugLevel
)

var logLevel = Normal

func SetLogLevel(v Verbosity) { logLevel = v }

// colorPrinter is satisfied by both *color.Theme and *color.Style, letting
// cPrintf/cPrintln fall back to plain fmt when no style is configured.
type colorPrinter interface {
	Printf(format string, a ...any)
	Println(a ...any)
}

func cPrintf(p colorPrinter, format string, a ...any) {
	if p == nil {
		fmt.Printf(format, a...)
		return
	}
	p.Printf(format, a...)
}

func cPrintln(p colorPrinter, a ...any) {
	if p == nil {
		fmt.Println(a...)
		return
	}
	p.Println(a...)
}

// debugf prints only at DebugLevel.
func debugf(format string, args ...any) {
	if logLevel >= DebugLevel {
		fmt.Printf(format, args...)
	}
}

// logVerbose prints only at Verbose or above — used for TempDir retention
// notices and other detail the Normal level omits.
func logVerbose(format string, args ...any) {
	if logLevel >= Verbose {
		colNote.Printf(format+"\n", args...)
	}
}

// logStep announces the start of one unit's build step at Normal or above.
func logStep(unit UnitId, step string) {
	if logLevel < Normal {
		return
	}
	colArrow.Print("-> ")
	colSuccess.Printf("%s ", step)
	colNote.Printf("%s\n", unit)
}
