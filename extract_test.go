// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package gemdoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPolyglot(t *testing.T) {
	poly := assemble(t, "# Hello", nil)
	ok, err := IsPolyglot(poly)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsPolyglot_PlainGemini(t *testing.T) {
	ok, err := IsPolyglot([]byte("# Just a document\n"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsPolyglot_PDFWithoutSignature(t *testing.T) {
	ok, err := IsPolyglot([]byte("%PDF-1.7\n%\xc8\xc8\xc8\xc8\nrest"))
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrMissingSignature)
}

func TestIsPolyglot_LeadingWhitespaceTolerated(t *testing.T) {
	poly := assemble(t, "# Hello", nil)
	ok, err := IsPolyglot(append([]byte("\n \n"), poly...))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExtractSource_RoundTrip(t *testing.T) {
	cases := []string{
		"# Hello\n\nWorld",
		"plain text",
		"* a\n* b\n> q\n```\npre\n```",
		"",
	}
	for _, source := range cases {
		out := assemble(t, source, nil)
		got, _, err := ExtractSource(out)
		require.NoError(t, err)
		assert.Equalf(t, source, got, "round trip of %q", source)
	}
}

func TestExtractSource_RecoversMetadata(t *testing.T) {
	meta := Metadata{"author": "ann", "date": "2024-01-02", "url": "gemini://h/x.gmi", "title": "T"}
	out := assemble(t, "# T", meta)
	_, got, err := ExtractSource(out)
	require.NoError(t, err)
	assert.Equal(t, "ann", got["author"])
	assert.Equal(t, "2024-01-02", got["date"])
	assert.Equal(t, "gemini://h/x.gmi", got["url"])
	assert.Equal(t, "T", got["title"])
}

func TestExtractSource_ASCIILiteralValues(t *testing.T) {
	// Metadata written by other producers as plain (…) literals is
	// recovered too.
	pdf := []byte("1 0 obj\n<</Type /Catalog>>\nendobj\n" +
		"2 0 obj\n<</Author (bob) /Producer (x)>>\nendobj\n" +
		"3 0 obj\n<</Type /EmbeddedFile /Length 3>>\nstream\nhi\n\nendstream\nendobj\n" +
		"xref\n0 4\ntrailer\n<</Size 4/Root 1 0 R/Info 2 0 R>>\nstartxref\n0\n%%EOF\n")
	source, meta, err := ExtractSource(pdf)
	require.NoError(t, err)
	assert.Equal(t, "hi", source)
	assert.Equal(t, "bob", meta["author"])
	_, hasProducer := meta["producer"]
	assert.False(t, hasProducer)
}

func TestUTF16HexRoundTrip(t *testing.T) {
	for _, s := range []string{"plain", "with space", "ünïcode ♊"} {
		enc := string(utf16HexString(s))
		require.True(t, len(enc) > 2)
		dec, err := decodeUTF16Hex(enc[1 : len(enc)-1])
		require.NoError(t, err)
		assert.Equal(t, s, dec)
	}
}

func TestUTF16HexString_BOMAndCase(t *testing.T) {
	assert.Equal(t, "<feff0041>", string(utf16HexString("A")))
}
