package weft

// Code in this file was split out for readability.
// No behavior changes intended.

import (
	"fmt"
	"os"
	"strings"
)

// ScriptBuffer accumulates a sequence of command invocations and
// environment-variable assignments and renders them as a single portable
// POSIX shell script.
type ScriptBuffer struct {
	lines []string
}

func NewScriptBuffer() *ScriptBuffer {
	sb := &ScriptBuffer{}
	sb.lines = append(sb.lines, "#!/bin/sh", "set -e", "")
	return sb
}

// newScriptBlock returns an empty, headerless ScriptBuffer for accumulating
// one unit's command sequence before merging it into a top-level buffer via
// Append.
func newScriptBlock() *ScriptBuffer {
	return &ScriptBuffer{}
}

// Append concatenates other's entries onto sb without re-ordering, used by
// the Script strategy to merge per-unit buffers built during the walk.
func (sb *ScriptBuffer) Append(other *ScriptBuffer) {
	sb.lines = append(sb.lines, other.lines...)
}

// Cd emits a directory change, quoted for the shell.
func (sb *ScriptBuffer) Cd(dir string) {
	sb.lines = append(sb.lines, fmt.Sprintf("cd %s", shellQuote(dir)))
}

// SetEnv emits an exported assignment.
func (sb *ScriptBuffer) SetEnv(key, value string) {
	sb.lines = append(sb.lines, fmt.Sprintf("export %s=%s", key, shellQuote(value)))
}

// Command emits a single-quoted, space-joined invocation.
func (sb *ScriptBuffer) Command(prog string, args ...string) {
	sb.lines = append(sb.lines, joinCmdline(prog, args))
}

// Comment emits a "# " prefixed annotation, used to mark setup-compile and
// per-unit blocks so the emitted script reads like the TopoSort trace.
func (sb *ScriptBuffer) Comment(text string) {
	sb.lines = append(sb.lines, "# "+text)
}

// Blank inserts a blank separator line between command blocks.
func (sb *ScriptBuffer) Blank() {
	sb.lines = append(sb.lines, "")
}

// Render returns the accumulated script text.
func (sb *ScriptBuffer) Render() string {
	return strings.Join(sb.lines, "\n") + "\n"
}

// AppendToFile appends the rendered script to the file at path, creating it
// (mode 0755, so the emitted script is directly executable) if absent.
func (sb *ScriptBuffer) AppendToFile(path string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o755)
	if err != nil {
		return &IOFailure{Op: "open script file " + path, Err: err}
	}
	defer f.Close()
	if _, err := f.WriteString(sb.Render()); err != nil {
		return &IOFailure{Op: "write script file " + path, Err: err}
	}
	return nil
}

// shellQuote wraps s in single quotes, escaping any embedded single quote
// as '\'' — the standard POSIX-portable quoting idiom.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
