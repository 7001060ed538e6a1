package tester

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func message(msgAndArgs ...any) string {
	if len(msgAndArgs) == 0 {
		return ""
	}
	if format, ok := msgAndArgs[0].(string); ok && len(msgAndArgs) > 1 {
		return fmt.Sprintf(format, msgAndArgs[1:]...)
	}
	return fmt.Sprint(msgAndArgs[0])
}

// Eq asserts that got equals want, using reflect.DeepEqual so slices and
// maps compare by content.
func Eq[T any](t *testing.T, got, want T, msgAndArgs ...any) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		if msg := message(msgAndArgs...); msg != "" {
			t.Fatalf("%s: got=%v want=%v", msg, got, want)
		}
		t.Fatalf("got=%v want=%v", got, want)
	}
}

// True asserts that cond is true.
func True(t *testing.T, cond bool, msgAndArgs ...any) {
	t.Helper()
	if !cond {
		if msg := message(msgAndArgs...); msg != "" {
			t.Fatalf("%s", msg)
		}
		t.Fatalf("expected condition to be true")
	}
}

// False asserts that cond is false.
func False(t *testing.T, cond bool, msgAndArgs ...any) {
	t.Helper()
	if cond {
		if msg := message(msgAndArgs...); msg != "" {
			t.Fatalf("%s", msg)
		}
		t.Fatalf("expected condition to be false")
	}
}

// NoErr asserts that err is nil.
func NoErr(t *testing.T, err error, msgAndArgs ...any) {
	t.Helper()
	if err != nil {
		if msg := message(msgAndArgs...); msg != "" {
			t.Fatalf("%s: %v", msg, err)
		}
		t.Fatalf("unexpected error: %v", err)
	}
}

// ErrIs asserts that err is non-nil and matches target via errors.Is.
func ErrIs(t *testing.T, err, target error, msgAndArgs ...any) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error matching %v, got nil", target)
	}
	if !errors.Is(err, target) {
		if msg := message(msgAndArgs...); msg != "" {
			t.Fatalf("%s: error %v does not match %v", msg, err, target)
		}
		t.Fatalf("error %v does not match %v", err, target)
	}
}

// Contains asserts that s contains substr.
func Contains(t *testing.T, s, substr string, msgAndArgs ...any) {
	t.Helper()
	if !strings.Contains(s, substr) {
		if msg := message(msgAndArgs...); msg != "" {
			t.Fatalf("%s: %q does not contain %q", msg, s, substr)
		}
		t.Fatalf("%q does not contain %q", s, substr)
	}
}
