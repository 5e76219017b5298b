// Package rbxlx streams Roblox place files, decompiles every script whose
// source was replaced with a bytecode marker block and copies everything
// else through untouched.
package rbxlx

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

const (
	// read and write buffers are sized so syscalls stay rare even for place
	// files in the hundreds of megabytes
	ioBufferSize = 8 * 1024 * 1024

	// verbatim tokens are cut off around this size so the pipeline channel
	// never holds on to large slices
	verbatimFlushSize = 64 * 1024
)

var (
	cdataOpen  = []byte("<![CDATA[")
	cdataClose = []byte("]]>")
	namePrefix = []byte(`string name="Name">`)
)

// TokenKind discriminates scanner tokens.
type TokenKind int

const (
	// TokenVerbatim is a run of document bytes outside any CDATA section.
	TokenVerbatim TokenKind = iota
	// TokenCData is the content of one CDATA section, without delimiters.
	TokenCData
)

// Token is one piece of the document. Data is only valid until the next Scan
// call. Name carries the value of the last Name property the scanner passed
// which, thanks to Roblox sorting properties alphabetically, is the script's
// name by the time its Source section comes up.
type Token struct {
	Kind TokenKind
	Data []byte
	Name string
}

// Scanner splits a place file into verbatim byte runs and CDATA sections.
// It never builds a document tree; everything outside CDATA sections is
// reproduced byte for byte, which keeps memory flat no matter how large the
// place file is.
type Scanner struct {
	reader  *bufio.Reader
	token   Token
	buf     []byte
	err     error
	eof     bool
	inCData bool
	capture bool
	name    string
}

// NewScanner wraps r.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{reader: bufio.NewReaderSize(r, ioBufferSize)}
}

// Scan advances to the next token. It returns false once the document is
// exhausted or reading failed, which Err reports.
func (s *Scanner) Scan() bool {
	if s.err != nil || s.eof {
		return false
	}
	if s.inCData {
		return s.scanCData()
	}

	s.buf = s.buf[:0]
	for {
		chunk, err := s.reader.ReadSlice('<')
		switch err {
		case nil:
			// chunk ends with '<'
			if s.capture {
				s.capture = false
				if gt := bytes.IndexByte(chunk, '>'); gt >= 0 {
					s.name = unescape(string(chunk[gt+1 : len(chunk)-1]))
				}
			}

			probe, _ := s.reader.Peek(len(cdataOpen) - 1)
			if bytes.HasPrefix(probe, cdataOpen[1:]) {
				_, _ = s.reader.Discard(len(cdataOpen) - 1)
				s.buf = append(s.buf, chunk[:len(chunk)-1]...)
				s.inCData = true
				if len(s.buf) > 0 {
					return s.emitVerbatim()
				}
				return s.scanCData()
			}

			if probe, _ := s.reader.Peek(len(namePrefix)); bytes.HasPrefix(probe, namePrefix) {
				s.capture = true
			}

			s.buf = append(s.buf, chunk...)
			if len(s.buf) >= verbatimFlushSize {
				return s.emitVerbatim()
			}

		case bufio.ErrBufferFull:
			s.buf = append(s.buf, chunk...)
			if len(s.buf) >= verbatimFlushSize {
				return s.emitVerbatim()
			}

		case io.EOF:
			s.buf = append(s.buf, chunk...)
			s.eof = true
			if len(s.buf) > 0 {
				return s.emitVerbatim()
			}
			return false

		default:
			s.err = eris.Wrap(err, "failed to read the document")
			return false
		}
	}
}

func (s *Scanner) scanCData() bool {
	s.inCData = false
	s.buf = s.buf[:0]

	for {
		chunk, err := s.reader.ReadSlice('>')
		s.buf = append(s.buf, chunk...)
		switch err {
		case nil:
			if bytes.HasSuffix(s.buf, cdataClose) {
				s.token = Token{
					Kind: TokenCData,
					Data: s.buf[:len(s.buf)-len(cdataClose)],
					Name: s.name,
				}
				return true
			}

		case bufio.ErrBufferFull:
			// keep collecting

		case io.EOF:
			s.err = eris.New("unexpected end of file inside a CDATA section")
			return false

		default:
			s.err = eris.Wrap(err, "failed to read the document")
			return false
		}
	}
}

func (s *Scanner) emitVerbatim() bool {
	s.token = Token{Kind: TokenVerbatim, Data: s.buf}
	return true
}

// Token returns the current token.
func (s *Scanner) Token() Token {
	return s.token
}

// Err returns the first error the scanner hit.
func (s *Scanner) Err() error {
	return s.err
}

var entityReplacer = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&amp;", "&",
)

func unescape(text string) string {
	if !strings.Contains(text, "&") {
		return text
	}

	return entityReplacer.Replace(text)
}

// WriteCData writes text wrapped in a CDATA section. A literal ]]> inside
// the text would terminate the section early, so it is split across two
// sections at that point.
func WriteCData(w io.Writer, text string) error {
	if _, err := w.Write(cdataOpen); err != nil {
		return err
	}

	if _, err := io.WriteString(w, strings.ReplaceAll(text, "]]>", "]]]]><![CDATA[>")); err != nil {
		return err
	}

	_, err := w.Write(cdataClose)
	return err
}
