// Package util holds small helpers shared across the file system packages.
package util

import "log"

// Debug is the verbosity threshold for DPrintf. Raise it while chasing a bug.
const Debug uint64 = 0

// DPrintf logs format/a if level is at or below Debug.
func DPrintf(level uint64, format string, a ...interface{}) {
	if level <= Debug {
		log.Printf(format, a...)
	}
}

// RoundUp returns n/sz rounded up: the number of sz-sized units needed
// to hold n.
func RoundUp(n uint64, sz uint64) uint64 {
	return (n + sz - 1) / sz
}

// Min returns the smaller of n and m.
func Min(n uint64, m uint64) uint64 {
	if n < m {
		return n
	}
	return m
}
