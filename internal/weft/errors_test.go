package weft

import (
	"errors"
	"strings"
	"testing"
)

func TestCommandFailedErrorMessage(t *testing.T) {
	err := &CommandFailed{Prog: "ghc", Args: []string{"--make", "it's a test"}, ExitCode: 1}
	msg := err.Error()
	if !strings.Contains(msg, "exit 1") {
		t.Errorf("expected exit code in message, got: %q", msg)
	}
	if !strings.Contains(msg, `'it'\''s a test'`) {
		t.Errorf("expected shell-quoted argument in message, got: %q", msg)
	}
}

func TestPlanCyclicErrorMessage(t *testing.T) {
	err := &PlanCyclic{Cycle: []UnitId{"a", "b", "a"}}
	if err.Error() != "plan contains a dependency cycle: a -> b -> a" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestIOFailureUnwraps(t *testing.T) {
	inner := errors.New("disk full")
	err := &IOFailure{Op: "write plan file", Err: inner}
	if !errors.Is(err, inner) {
		t.Error("expected errors.Is to find the wrapped error")
	}
}
