package mute

// speculate tries candidates in order and returns the first one attempt
// reports success for. Attempts are responsible for their own rollback.
func speculate[T any](candidates []T, attempt func(T) bool) (T, bool) {
	for _, c := range candidates {
		if attempt(c) {
			return c, true
		}
	}
	var zero T
	return zero, false
}
