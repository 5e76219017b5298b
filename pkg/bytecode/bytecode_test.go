package bytecode

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBytecode(t *testing.T) {
	t.Run("accepts Luau version bytes", func(t *testing.T) {
		for _, version := range []byte{3, 4, 5, 6} {
			data := append([]byte{version}, []byte("rest")...)
			assert.True(t, IsBytecode(data), "version %d", version)
		}
	})

	t.Run("accepts Lua and LuaJIT headers", func(t *testing.T) {
		assert.True(t, IsBytecode([]byte("\x1bLua\x51")))
		assert.True(t, IsBytecode([]byte("\x1bLJ\x01x")))
		assert.True(t, IsBytecode([]byte("\x1bLJ\x02x")))
	})

	t.Run("rejects short data", func(t *testing.T) {
		assert.False(t, IsBytecode(nil))
		assert.False(t, IsBytecode([]byte{3}))
		assert.False(t, IsBytecode([]byte("\x1bLua")))
	})

	t.Run("rejects plain source", func(t *testing.T) {
		assert.False(t, IsBytecode([]byte("print('hello')")))
		assert.False(t, IsBytecode([]byte("\x1bLJ\x03xx")))
	})
}

func TestFindMarker(t *testing.T) {
	t.Run("finds LF marker", func(t *testing.T) {
		source := "-- watermark\n-- Bytecode (Base64):\n-- QUJD\n\nrest"
		marker, ok := FindMarker(source)
		require.True(t, ok)
		assert.Equal(t, "QUJD", marker.Base64)
		assert.Equal(t, "-- watermark\n-- Bytecode (Base64):\n-- ", marker.Prefix)
	})

	t.Run("finds CRLF marker", func(t *testing.T) {
		source := "-- watermark\r\n-- Bytecode (Base64):\r\n-- QUJD\r\n"
		marker, ok := FindMarker(source)
		require.True(t, ok)
		assert.Equal(t, "QUJD", marker.Base64)
		assert.True(t, strings.HasSuffix(marker.Prefix, "-- Bytecode (Base64):\r\n-- "))
	})

	t.Run("payload runs to end of input without trailing newline", func(t *testing.T) {
		marker, ok := FindMarker("-- Bytecode (Base64):\n-- QUJD")
		require.True(t, ok)
		assert.Equal(t, "QUJD", marker.Base64)
	})

	t.Run("prefix and payload reconstruct the source", func(t *testing.T) {
		source := "-- a\n-- b\n-- Bytecode (Base64):\n-- payload64"
		marker, ok := FindMarker(source)
		require.True(t, ok)
		assert.Equal(t, source, marker.Prefix+marker.Base64)
	})

	t.Run("no marker", func(t *testing.T) {
		_, ok := FindMarker("print('hello')")
		assert.False(t, ok)
	})

	t.Run("marker line without payload line", func(t *testing.T) {
		_, ok := FindMarker("-- Bytecode (Base64):\nprint('hello')")
		assert.False(t, ok)
	})
}

func TestDigest(t *testing.T) {
	sum := sha256.Sum256([]byte("QUJD"))
	assert.Equal(t, hex.EncodeToString(sum[:]), Digest("QUJD"))
	assert.Len(t, Digest(""), 64)
}
