package cli

import (
	"errors"
	"strings"
	"testing"
)

func TestConfigErrorWithField(t *testing.T) {
	err := NewConfigError("store.path", "must not be empty")
	if !strings.Contains(err.Error(), "store.path") {
		t.Errorf("error %q should name the field", err.Error())
	}
}

func TestConfigErrorWithoutField(t *testing.T) {
	err := NewConfigError("", "failed to load config")
	if strings.Contains(err.Error(), "in :") {
		t.Errorf("error %q should omit the empty field", err.Error())
	}
}

func TestCommandErrorUnwrap(t *testing.T) {
	cause := errors.New("listen tcp: address in use")
	err := NewCommandError("run", cause)

	if !errors.Is(err, cause) {
		t.Error("CommandError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "run") {
		t.Errorf("error %q should name the command", err.Error())
	}
}
