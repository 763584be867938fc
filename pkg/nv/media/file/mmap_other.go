//go:build !unix

package file

import "os"

func mmap(*os.File, int) ([]byte, error) { return nil, ErrUnsupported }
func munmap([]byte) error                { return ErrUnsupported }
func msync([]byte) error                 { return ErrUnsupported }
