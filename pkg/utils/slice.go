package utils

// Map applies mapper to each element of sli and returns the results in order.
func Map[T any, R any](sli []T, mapper func(v T) R) []R {
	ret := make([]R, len(sli))
	for nth, v := range sli {
		ret[nth] = mapper(v)
	}
	return ret
}

// Filter returns the elements of sli for which pred holds, keeping order.
func Filter[T any](sli []T, pred func(v T) bool) []T {
	ret := []T{}
	for _, v := range sli {
		if pred(v) {
			ret = append(ret, v)
		}
	}
	return ret
}

// First returns a pointer to the first element satisfying pred, or nil.
func First[T any](sli []T, pred func(v T) bool) *T {
	for nth := range sli {
		if pred(sli[nth]) {
			return &sli[nth]
		}
	}
	return nil
}

// Contains tests whether any element of sli satisfies pred.
func Contains[T any](sli []T, pred func(v T) bool) bool {
	return First(sli, pred) != nil
}

// ToMap converts a slice into a map keyed by getkey.
//
// On key collision, the later element wins.
func ToMap[T any, K comparable](sli []T, getkey func(v T) K) map[K]T {
	ret := make(map[K]T, len(sli))
	for _, v := range sli {
		ret[getkey(v)] = v
	}
	return ret
}

// KeysOf returns the keys of m in unspecified order.
func KeysOf[K comparable, V any](m map[K]V) []K {
	ret := make([]K, 0, len(m))
	for k := range m {
		ret = append(ret, k)
	}
	return ret
}

// Default returns *v if v is not nil, otherwise d.
func Default[T any](v *T, d T) T {
	if v == nil {
		return d
	}
	return *v
}
