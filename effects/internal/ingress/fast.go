//go:build !race

package ingress

import "code.hybscloud.com/lfq"

func newFast[T any](capacity int) lockFree[T] {
	return lfq.Build[T](lfq.New(capacity).Compact())
}
