package utils

import (
	"os"
	"strconv"
	"strings"
)

// ChunkSlice splits a slice into chunks of at most size elements, preserving order.
func ChunkSlice[T any](slice []T, size int) [][]T {
	if size <= 0 {
		size = len(slice)
	}
	var chunks [][]T
	for size < len(slice) {
		slice, chunks = slice[size:], append(chunks, slice[0:size:size])
	}
	if len(slice) > 0 {
		chunks = append(chunks, slice)
	}
	return chunks
}

func UniqueSlice[T comparable](slice []T) []T {
	inResult := make(map[T]bool)
	var result []T
	for _, elm := range slice {
		if _, ok := inResult[elm]; !ok {
			// if not exists in map, append it, otherwise do nothing
			inResult[elm] = true
			result = append(result, elm)
		}
	}
	return result
}

func IntFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// StripLeadingZeros drops leading zeros from a numeric string ("0012" -> "12").
// An all-zero string collapses to "0".
func StripLeadingZeros(s string) string {
	s = strings.TrimSpace(s)
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" && s != "" {
		return "0"
	}
	return trimmed
}
