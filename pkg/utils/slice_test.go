package utils_test

import (
	"strconv"
	"testing"

	"github.com/spinvfx/spinfab/pkg/utils"
	"github.com/spinvfx/spinfab/pkg/utils/cmp"
)

func TestMap(t *testing.T) {
	actual := utils.Map([]int{1, 2, 3}, strconv.Itoa)
	if !cmp.SliceEq(actual, []string{"1", "2", "3"}) {
		t.Errorf("unexpected: %v", actual)
	}
}

func TestFilter(t *testing.T) {
	actual := utils.Filter([]int{1, 2, 3, 4, 5}, func(v int) bool { return v%2 == 0 })
	if !cmp.SliceEq(actual, []int{2, 4}) {
		t.Errorf("unexpected: %v", actual)
	}
}

func TestFirst(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		found := utils.First([]string{"a", "bb", "ccc"}, func(v string) bool { return len(v) == 2 })
		if found == nil || *found != "bb" {
			t.Errorf("unexpected: %v", found)
		}
	})
	t.Run("not found", func(t *testing.T) {
		found := utils.First([]string{"a"}, func(v string) bool { return len(v) == 2 })
		if found != nil {
			t.Errorf("unexpected: %v", found)
		}
	})
}

func TestToMap(t *testing.T) {
	actual := utils.ToMap([]string{"a", "bb"}, func(v string) int { return len(v) })
	if len(actual) != 2 || actual[1] != "a" || actual[2] != "bb" {
		t.Errorf("unexpected: %v", actual)
	}
}

func TestDefault(t *testing.T) {
	v := 42
	if utils.Default(&v, 7) != 42 {
		t.Error("pointer value should win")
	}
	if utils.Default[int](nil, 7) != 7 {
		t.Error("default should win for nil")
	}
}
