package errcode

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodesAreStableStrings(t *testing.T) {
	cases := map[string]Code{
		"invalid_config":     InvalidConfig,
		"invalid_pin":        InvalidPin,
		"unsupported_mode":   UnsupportedMode,
		"unsupported_action": UnsupportedAction,
		"timeout":            Timeout,
		"no_acknowledge":     NoAcknowledge,
	}
	for want, c := range cases {
		if c.Error() != want {
			t.Fatalf("code %q mismatch: got %q", want, c.Error())
		}
	}
}

func TestOfFollowsWrapping(t *testing.T) {
	base := New(Timeout, "busywait", "Target busy timeout")
	wrapped := fmt.Errorf("read: %w", base)

	if got := Of(base); got != Timeout {
		t.Fatalf("Of(base) = %q", got)
	}
	if got := Of(wrapped); got != Timeout {
		t.Fatalf("Of(wrapped) = %q", got)
	}
	if got := Of(nil); got != OK {
		t.Fatalf("Of(nil) = %q", got)
	}
	if got := Of(errors.New("x")); got != Error {
		t.Fatalf("Of(plain) = %q", got)
	}
}

func TestReasonPrefersMessage(t *testing.T) {
	if got := Reason(New(InvalidConfig, "parallel", "Invalid configuration")); got != "Invalid configuration" {
		t.Fatalf("Reason = %q", got)
	}
	cause := errors.New("spi: short write")
	if got := Reason(Wrap(Bus, "commit", cause)); got != "bus: spi: short write" {
		t.Fatalf("Reason = %q", got)
	}
	if Wrap(Bus, "commit", nil) != nil {
		t.Fatal("Wrap(nil) must stay nil")
	}
}
