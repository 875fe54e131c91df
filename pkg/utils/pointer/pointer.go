package pointer

// Ref returns a pointer to v.
func Ref[T any](v T) *T {
	return &v
}

// SafeDeref returns *p, or the zero value when p is nil.
func SafeDeref[T any](p *T) T {
	if p == nil {
		return *new(T)
	}
	return *p
}
