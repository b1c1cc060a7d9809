//go:build !unix

package hv

func allocBacking(size int) ([]byte, func() error, error) {
	return make([]byte, size), func() error { return nil }, nil
}
