// Package fingerprint computes the error-fingerprint spec.md §4.7 step 4
// requires for every exception-type log event: a stable SHA-256 hash
// that lets the storage workers deduplicate repeated errors into a
// single ErrorGroup regardless of which request carried the stack
// trace's exact line numbers or memory addresses.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// MaxFrames bounds how many of the stack's top frames participate in the
// fingerprint. Frames near the top of a stack (closest to where the
// error was raised) are the ones that distinguish one bug from another;
// frames deep in a framework's dispatch machinery are shared noise.
const MaxFrames = 5

// hexAddrPattern and lineNoPattern strip hex addresses and line numbers that make two
// occurrences of the same logical error hash differently (e.g.
// "0x7f3c1a2b" or ":142").
var (
	hexAddrPattern = regexp.MustCompile(`0x[0-9a-fA-F]+`)
	lineNoPattern  = regexp.MustCompile(`:\d+`)
)

// normalizeFrame strips volatile substrings from a single stack line so
// that two stack traces for the same bug, captured at different times,
// collapse to the same normalized text.
func normalizeFrame(frame string) string {
	frame = hexAddrPattern.ReplaceAllString(frame, "0xN")
	frame = lineNoPattern.ReplaceAllString(frame, ":N")
	return strings.TrimSpace(frame)
}

// topFrames returns the first n non-empty, normalized lines of stack.
func topFrames(stack string, n int) []string {
	lines := strings.Split(stack, "\n")
	frames := make([]string, 0, n)
	for _, line := range lines {
		line = normalizeFrame(line)
		if line == "" {
			continue
		}
		frames = append(frames, line)
		if len(frames) == n {
			break
		}
	}
	return frames
}

// Compute returns the 64 hex character SHA-256 fingerprint of errorType,
// the top MaxFrames normalized lines of stack, and platform, matching
// §4.7's "canonical concatenation of error-type + normalized top frames
// of the stack + platform".
func Compute(errorType, stack, platform string) string {
	var b strings.Builder
	b.WriteString(errorType)
	b.WriteByte('\n')
	for _, frame := range topFrames(stack, MaxFrames) {
		b.WriteString(frame)
		b.WriteByte('\n')
	}
	b.WriteString(platform)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
