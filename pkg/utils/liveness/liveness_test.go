package liveness_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spinvfx/spinfab/pkg/utils/liveness"
)

func TestTouchAndFresherThan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alive")

	t.Run("missing file is stale", func(t *testing.T) {
		fresh, err := liveness.FresherThan(path, time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		if fresh {
			t.Error("missing file should not be fresh")
		}
	})

	t.Run("touched file is fresh", func(t *testing.T) {
		if err := liveness.Touch(path); err != nil {
			t.Fatal(err)
		}
		fresh, err := liveness.FresherThan(path, time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		if !fresh {
			t.Error("just-touched file should be fresh")
		}
	})

	t.Run("tight max age makes it stale", func(t *testing.T) {
		fresh, err := liveness.FresherThan(path, -time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if fresh {
			t.Error("negative max age can never be fresh")
		}
	})

	t.Run("touch twice keeps it fresh", func(t *testing.T) {
		if err := liveness.Touch(path); err != nil {
			t.Fatal(err)
		}
	})
}
