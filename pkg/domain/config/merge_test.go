package config_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/spinvfx/spinfab/pkg/domain/config"
)

func TestNewID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i += 1 {
		id := config.NewID()
		if !strings.HasPrefix(id, config.IDPrefix) {
			t.Fatalf("id misses prefix: %s", id)
		}
		if len(id) != len(config.IDPrefix)+24 {
			t.Fatalf("unexpected id length: %s", id)
		}
		if seen[id] {
			t.Fatalf("id generated twice: %s", id)
		}
		seen[id] = true
	}
}

func TestIsNameValid(t *testing.T) {
	for name, want := range map[string]bool{
		"event_tools":     true,
		"render-settings": true,
		"a":               true,
		"7zip":            true,
		"":                false,
		"-leading-dash":   false,
		"with space":      false,
		"with/slash":      false,
		"cid_abcdef":      false,
	} {
		if got := config.IsNameValid(name); got != want {
			t.Errorf("IsNameValid(%q) = %v, want %v", name, got, want)
		}
	}
}

func parentFixture() map[string]any {
	return map[string]any{
		"a": "1",
		"b": 2,
		"d": map[string]any{
			"x": "m",
			"y": map[string]any{"y1": 0, "y2": "v1", "y4": 11},
		},
	}
}

func childFixture() map[string]any {
	return map[string]any{
		"a": "1",
		"j": "jj",
		"d": map[string]any{
			"x":       "x_changed",
			"y":       map[string]any{"y2": "v1_changed", "y3": "y3_added"},
			"z_added": "k",
		},
	}
}

func effectiveFixture() map[string]any {
	return map[string]any{
		"a": "1",
		"b": 2,
		"j": "jj",
		"d": map[string]any{
			"x":       "x_changed",
			"y":       map[string]any{"y1": 0, "y2": "v1_changed", "y3": "y3_added", "y4": 11},
			"z_added": "k",
		},
	}
}

func TestMerge(t *testing.T) {
	t.Run("the deeper side dominates, ancestors fill gaps", func(t *testing.T) {
		got := config.Merge(childFixture(), parentFixture())
		if !reflect.DeepEqual(got, effectiveFixture()) {
			t.Errorf("unexpected merge:\ngot  %#v\nwant %#v", got, effectiveFixture())
		}
	})

	t.Run("inputs stay untouched", func(t *testing.T) {
		base := childFixture()
		toMerge := parentFixture()
		_ = config.Merge(base, toMerge)
		if !reflect.DeepEqual(base, childFixture()) {
			t.Error("base was mutated")
		}
		if !reflect.DeepEqual(toMerge, parentFixture()) {
			t.Error("toMerge was mutated")
		}
	})

	t.Run("merging into an empty base keeps the other side", func(t *testing.T) {
		got := config.Merge(map[string]any{}, parentFixture())
		if !reflect.DeepEqual(got, parentFixture()) {
			t.Errorf("unexpected merge: %#v", got)
		}
	})
}

func TestInherited(t *testing.T) {
	parent := map[string]any{
		"keep":    "p",
		"drop":    "p",
		"nested":  map[string]any{"a": 1, "b": 2},
		"replace": "p",
	}
	child := map[string]any{
		"keep":    "p",
		"nested":  map[string]any{"b": 3},
		"replace": "c",
		"added":   "c",
	}

	t.Run("removeMissing drops keys absent from the child", func(t *testing.T) {
		got := config.Inherited(parent, child, true)
		want := map[string]any{
			"keep":    "p",
			"nested":  map[string]any{"b": 3},
			"replace": "c",
			"added":   "c",
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("unexpected result:\ngot  %#v\nwant %#v", got, want)
		}
	})

	t.Run("without removeMissing parent keys survive", func(t *testing.T) {
		got := config.Inherited(parent, child, false)
		if got["drop"] != "p" {
			t.Errorf("parent key should survive: %#v", got)
		}
		if got["replace"] != "c" {
			t.Errorf("child value should override: %#v", got)
		}
	})
}

func TestReduced(t *testing.T) {
	t.Run("keys equal to the base are stripped", func(t *testing.T) {
		got := config.Reduced(childFixture(), parentFixture())
		want := map[string]any{
			"j": "jj",
			"d": map[string]any{
				"x":       "x_changed",
				"y":       map[string]any{"y2": "v1_changed", "y3": "y3_added"},
				"z_added": "k",
			},
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("unexpected residue:\ngot  %#v\nwant %#v", got, want)
		}
	})

	t.Run("reduce then merge equals merging the unreduced body", func(t *testing.T) {
		base := parentFixture()
		reduced := config.Reduced(childFixture(), base)

		viaReduced := config.Merge(reduced, base)
		viaFull := config.Merge(childFixture(), base)
		if !reflect.DeepEqual(viaReduced, viaFull) {
			t.Errorf("round trip diverged:\nreduced %#v\nfull    %#v", viaReduced, viaFull)
		}
	})
}

func TestFillTokens(t *testing.T) {
	tokens := map[string]string{
		"show":  "abcshow",
		"bling": "tiger",
		"site":  "Mumbai",
	}

	for name, testcase := range map[string]struct {
		text string
		want string
	}{
		"known tokens are substituted": {
			text: `{"s":"<show>","e":"x_<bling>","u":"an <<thing>> thing"}`,
			want: `{"s":"abcshow","e":"x_tiger","u":"an <<thing>> thing"}`,
		},
		"unknown tokens pass through": {
			text: `{"v":"<unknown>"}`,
			want: `{"v":"<unknown>"}`,
		},
		"doubled markers stay intact": {
			text: `{"v":"<<show>>"}`,
			want: `{"v":"<<show>>"}`,
		},
		"tokens need a boundary character on both sides": {
			text: `<show> and <site>!`,
			want: `<show> and Mumbai!`,
		},
		"no tokens at all": {
			text: `{"v":"plain"}`,
			want: `{"v":"plain"}`,
		},
	} {
		t.Run(name, func(t *testing.T) {
			if got := config.FillTokens(testcase.text, tokens); got != testcase.want {
				t.Errorf("FillTokens(%q):\ngot  %q\nwant %q", testcase.text, got, testcase.want)
			}
		})
	}

	t.Run("nil dictionary turns substitution off", func(t *testing.T) {
		text := `{"s":"<show>"}`
		if got := config.FillTokens(text, nil); got != text {
			t.Errorf("unexpected change: %q", got)
		}
	})
}
