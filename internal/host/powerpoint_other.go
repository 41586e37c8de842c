//go:build !windows

package host

import "context"

// Launch reports ErrUnsupportedPlatform; PowerPoint automation needs Windows COM.
func Launch(_ context.Context, _ Options) (Application, error) {
	return nil, ErrUnsupportedPlatform
}
