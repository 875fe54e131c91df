package errors_test

import (
	"errors"
	"strings"
	"testing"

	xerrors "github.com/spinvfx/spinfab/pkg/errors"
)

func TestWrap(t *testing.T) {
	t.Run("wrapped error unwraps to the original", func(t *testing.T) {
		root := errors.New("root cause")
		wrapped := xerrors.Wrap(root)

		if !errors.Is(wrapped, root) {
			t.Errorf("wrapped error does not unwrap to the original: %v", wrapped)
		}
	})

	t.Run("message carries the wrapping location and the cause", func(t *testing.T) {
		root := errors.New("root cause")
		wrapped := xerrors.Wrap(root)

		msg := wrapped.Error()
		if !strings.Contains(msg, "root cause") {
			t.Errorf("message misses cause: %s", msg)
		}
		if !strings.Contains(msg, "errors_test") {
			t.Errorf("message misses caller location: %s", msg)
		}
	})

	t.Run("note is rendered when given", func(t *testing.T) {
		wrapped := xerrors.WrapWithNote("while testing", errors.New("boom"))
		if !strings.Contains(wrapped.Error(), "while testing") {
			t.Errorf("message misses note: %s", wrapped.Error())
		}
	})
}
