// Package utils holds small generic helpers shared by the binaries and the mock backend.
package utils

// Value dereferences v, returning the zero value for a nil pointer.
func Value[T any](v *T) T {
	if v == nil {
		var zero T
		return zero
	}
	return *v
}

// Ptr returns a pointer to a copy of v. Payload structs use it for optional
// nested objects such as the user and token pair.
func Ptr[T any](v T) *T {
	return &v
}
