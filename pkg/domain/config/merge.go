package config

import (
	"reflect"
	"regexp"
	"strings"
)

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		copied := make([]any, len(t))
		for i, e := range t {
			copied[i] = deepCopyValue(e)
		}
		return copied
	default:
		return v
	}
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	copied := map[string]any{}
	for k, v := range m {
		copied[k] = deepCopyValue(v)
	}
	return copied
}

// Merge folds toMerge into base, where base is the deeper (dominant)
// configuration. Keys absent from base are added; when both sides hold
// an object the merge recurses; otherwise the base value stays.
func Merge(base map[string]any, toMerge map[string]any) map[string]any {
	merged := deepCopyMap(base)
	if merged == nil {
		merged = map[string]any{}
	}

	for k, v := range toMerge {
		baseV, found := merged[k]
		if !found {
			merged[k] = deepCopyValue(v)
			continue
		}
		baseM, baseIsMap := baseV.(map[string]any)
		vM, vIsMap := v.(map[string]any)
		if baseIsMap && vIsMap {
			merged[k] = Merge(baseM, vM)
		}
	}
	return merged
}

// Inherited applies child over parent. Child values override, and when
// removeMissing is true keys absent from the child are dropped, so the
// child body acts as the full desired state for its node.
func Inherited(parent map[string]any, child map[string]any, removeMissing bool) map[string]any {
	result := deepCopyMap(parent)
	if result == nil {
		result = map[string]any{}
	}

	if removeMissing {
		for k := range parent {
			if _, found := child[k]; !found {
				delete(result, k)
			}
		}
	}

	for k, v := range child {
		baseV, found := result[k]
		if !found {
			result[k] = deepCopyValue(v)
			continue
		}
		baseM, baseIsMap := baseV.(map[string]any)
		vM, vIsMap := v.(map[string]any)
		if baseIsMap && vIsMap {
			result[k] = Inherited(baseM, vM, true)
		} else {
			result[k] = deepCopyValue(v)
		}
	}
	return result
}

// Reduced strips from cfg every key whose value is already provided by
// base, leaving the minimal residue that reproduces cfg when merged
// back over base.
func Reduced(cfg map[string]any, base map[string]any) map[string]any {
	reduced := map[string]any{}

	for k, v := range cfg {
		baseV, found := base[k]
		if !found {
			reduced[k] = deepCopyValue(v)
			continue
		}
		baseM, baseIsMap := baseV.(map[string]any)
		vM, vIsMap := v.(map[string]any)
		if baseIsMap && vIsMap {
			reduced[k] = Reduced(vM, baseM)
			continue
		}
		if !reflect.DeepEqual(v, baseV) {
			reduced[k] = deepCopyValue(v)
		}
	}
	return reduced
}

// tokenPattern finds <name> references in a serialized configuration.
// The boundary groups keep doubled markers like <<name>> intact.
var tokenPattern = regexp.MustCompile(`([^<])?<(\w+?)>([^>])?`)

// FillTokens replaces <name> tokens in serialized JSON with values
// from tokens. A token is replaced only when its name is known and it
// is enclosed by single non-marker characters on both sides; anything
// else passes through untouched.
func FillTokens(text string, tokens map[string]string) string {
	if tokens == nil {
		return text
	}

	ready := strings.Builder{}
	rest := text
	for len(rest) > 0 {
		loc := tokenPattern.FindStringSubmatchIndex(rest)
		if loc == nil {
			break
		}
		name := rest[loc[4]:loc[5]]
		value, known := tokens[name]
		if known && loc[2] >= 0 && loc[6] >= 0 {
			if value == "" {
				value = name
			}
			ready.WriteString(rest[:loc[2]])
			ready.WriteString(rest[loc[2]:loc[3]])
			ready.WriteString(value)
			ready.WriteString(rest[loc[6]:loc[7]])
		} else {
			ready.WriteString(rest[:loc[1]])
		}
		rest = rest[loc[1]:]
	}
	ready.WriteString(rest)

	return ready.String()
}
