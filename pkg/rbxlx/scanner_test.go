package rbxlx

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDocument = `<roblox version="4">
<Item class="Script" referent="RBX0">
<Properties>
<string name="Name">Main</string>
<ProtectedString name="Source"><![CDATA[print("hi")]]></ProtectedString>
</Properties>
</Item>
<Item class="LocalScript" referent="RBX1">
<Properties>
<string name="Name">Loader &amp; Friends</string>
<ProtectedString name="Source"><![CDATA[return {}]]></ProtectedString>
</Properties>
</Item>
</roblox>
`

func collectTokens(t *testing.T, input io.Reader) []Token {
	t.Helper()

	scanner := NewScanner(input)
	var tokens []Token
	for scanner.Scan() {
		tok := scanner.Token()
		tok.Data = append([]byte(nil), tok.Data...)
		tokens = append(tokens, tok)
	}
	require.NoError(t, scanner.Err())
	return tokens
}

func rebuild(tokens []Token) string {
	var out strings.Builder
	for _, tok := range tokens {
		if tok.Kind == TokenCData {
			out.Write(cdataOpen)
			out.Write(tok.Data)
			out.Write(cdataClose)
		} else {
			out.Write(tok.Data)
		}
	}
	return out.String()
}

func cdataTokens(tokens []Token) []Token {
	var sections []Token
	for _, tok := range tokens {
		if tok.Kind == TokenCData {
			sections = append(sections, tok)
		}
	}
	return sections
}

func TestScanner(t *testing.T) {
	t.Run("reproduces the document byte for byte", func(t *testing.T) {
		tokens := collectTokens(t, strings.NewReader(sampleDocument))
		assert.Equal(t, sampleDocument, rebuild(tokens))
	})

	t.Run("splits out CDATA sections", func(t *testing.T) {
		tokens := collectTokens(t, strings.NewReader(sampleDocument))
		sections := cdataTokens(tokens)
		require.Len(t, sections, 2)
		assert.Equal(t, `print("hi")`, string(sections[0].Data))
		assert.Equal(t, "return {}", string(sections[1].Data))
	})

	t.Run("carries the closest preceding name", func(t *testing.T) {
		sections := cdataTokens(collectTokens(t, strings.NewReader(sampleDocument)))
		require.Len(t, sections, 2)
		assert.Equal(t, "Main", sections[0].Name)
		assert.Equal(t, "Loader & Friends", sections[1].Name)
	})

	t.Run("keeps CRLF content intact", func(t *testing.T) {
		input := "<a><![CDATA[line one\r\nline two\r\n]]></a>"
		tokens := collectTokens(t, strings.NewReader(input))
		assert.Equal(t, input, rebuild(tokens))

		sections := cdataTokens(tokens)
		require.Len(t, sections, 1)
		assert.Equal(t, "line one\r\nline two\r\n", string(sections[0].Data))
	})

	t.Run("handles empty sections", func(t *testing.T) {
		input := `<Content name="Tags"><![CDATA[]]></Content>`
		tokens := collectTokens(t, strings.NewReader(input))
		assert.Equal(t, input, rebuild(tokens))

		sections := cdataTokens(tokens)
		require.Len(t, sections, 1)
		assert.Empty(t, sections[0].Data)
	})

	t.Run("handles sections split around early terminators", func(t *testing.T) {
		input := `<a><![CDATA[x = "a]]]]><![CDATA[>b"]]></a>`
		tokens := collectTokens(t, strings.NewReader(input))
		assert.Equal(t, input, rebuild(tokens))

		sections := cdataTokens(tokens)
		require.Len(t, sections, 2)
		assert.Equal(t, `x = "a]]>b"`, string(sections[0].Data)+string(sections[1].Data))
	})

	t.Run("handles split reads", func(t *testing.T) {
		tokens := collectTokens(t, iotest.OneByteReader(strings.NewReader(sampleDocument)))
		assert.Equal(t, sampleDocument, rebuild(tokens))

		sections := cdataTokens(tokens)
		require.Len(t, sections, 2)
		assert.Equal(t, "Main", sections[0].Name)
	})

	t.Run("cuts long verbatim runs into several tokens", func(t *testing.T) {
		input := "<a>" + strings.Repeat("<b>x</b>", 3*verbatimFlushSize/8) + "</a>"
		tokens := collectTokens(t, strings.NewReader(input))
		assert.Greater(t, len(tokens), 1)
		assert.Equal(t, input, rebuild(tokens))
	})

	t.Run("fails on unterminated sections", func(t *testing.T) {
		scanner := NewScanner(strings.NewReader("<a><![CDATA[oops"))
		for scanner.Scan() {
		}
		require.Error(t, scanner.Err())
		assert.Contains(t, scanner.Err().Error(), "unexpected end of file")
	})

	t.Run("empty input", func(t *testing.T) {
		scanner := NewScanner(strings.NewReader(""))
		assert.False(t, scanner.Scan())
		assert.NoError(t, scanner.Err())
	})
}

func TestWriteCData(t *testing.T) {
	t.Run("wraps text in a section", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteCData(&buf, "print(1)"))
		assert.Equal(t, "<![CDATA[print(1)]]>", buf.String())
	})

	t.Run("splits early terminators", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteCData(&buf, "a]]>b"))
		assert.Equal(t, "<![CDATA[a]]]]><![CDATA[>b]]>", buf.String())
	})

	t.Run("written sections scan back to the original text", func(t *testing.T) {
		text := "x = \"a]]>b\"\nprint(x)"

		var buf bytes.Buffer
		require.NoError(t, WriteCData(&buf, text))

		var joined strings.Builder
		for _, tok := range cdataTokens(collectTokens(t, &buf)) {
			joined.Write(tok.Data)
		}
		assert.Equal(t, text, joined.String())
	})
}
