package weft

import (
	"os"
	"testing"
)

func withStdin(t *testing.T, input string) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	orig := os.Stdin
	os.Stdin = r
	t.Cleanup(func() { os.Stdin = orig })

	go func() {
		defer w.Close()
		w.WriteString(input)
	}()
}

func TestAskForConfirmationAcceptsYesVariants(t *testing.T) {
	for _, in := range []string{"y\n", "yes\n", "\n"} {
		withStdin(t, in)
		if !askForConfirmation(nil, "proceed?") {
			t.Errorf("input %q: expected confirmation to be accepted", in)
		}
	}
}

func TestAskForConfirmationRejectsNo(t *testing.T) {
	withStdin(t, "n\n")
	if askForConfirmation(nil, "proceed?") {
		t.Error("expected confirmation to be rejected for 'n'")
	}
}

func TestAskForConfirmationReprompts(t *testing.T) {
	withStdin(t, "maybe\ny\n")
	if !askForConfirmation(nil, "proceed?") {
		t.Error("expected eventual 'y' to be accepted after an invalid response")
	}
}
