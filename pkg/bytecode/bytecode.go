// Package bytecode recognizes compiled Luau chunks and the base64 marker
// blocks that script dumpers leave in place of script sources.
package bytecode

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	markerLF   = "-- Bytecode (Base64):\n-- "
	markerCRLF = "-- Bytecode (Base64):\r\n-- "
)

// IsBytecode reports whether data looks like a compiled script. Luau chunks
// start with a version byte between 3 and 6, PUC Lua and LuaJIT chunks with
// an escape header.
func IsBytecode(data []byte) bool {
	if len(data) < 5 {
		return false
	}

	if data[0] == 0x1b && data[1] == 'L' {
		if data[2] == 'u' && data[3] == 'a' {
			return true
		}
		if data[2] == 'J' && (data[3] == 0x01 || data[3] == 0x02) {
			return true
		}
	}

	return data[0] >= 3 && data[0] <= 6
}

// Marker is a bytecode marker found in a script source. Prefix holds
// everything up to the base64 payload, including the marker line itself,
// so Prefix + Base64 reconstructs the source up to the end of the payload.
type Marker struct {
	Prefix string
	Base64 string
}

// FindMarker scans source for a bytecode marker. Both LF and CRLF line
// endings are accepted; the payload runs until the next line break.
func FindMarker(source string) (Marker, bool) {
	start := strings.Index(source, markerLF)
	if start >= 0 {
		start += len(markerLF)
	} else {
		start = strings.Index(source, markerCRLF)
		if start < 0 {
			return Marker{}, false
		}
		start += len(markerCRLF)
	}

	end := strings.IndexAny(source[start:], "\r\n")
	if end < 0 {
		end = len(source)
	} else {
		end += start
	}

	return Marker{
		Prefix: source[:start],
		Base64: source[start:end],
	}, true
}

// Digest returns the SHA256 hex digest of the base64 payload. The service
// hashes the payload text it received, so this is the key used to match
// results to requests and to index the local cache.
func Digest(b64 string) string {
	sum := sha256.Sum256([]byte(b64))
	return hex.EncodeToString(sum[:])
}
