//go:build windows

package hdwallet

func mlock([]byte) bool { return false }

func munlock([]byte) {}
