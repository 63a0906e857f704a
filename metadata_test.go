// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package gemdoc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripMagicLines(t *testing.T) {
	body, meta, err := StripMagicLines("%!GEMDOC author=ann\n# Doc\n%!GEMDOC DATE = 2024-01-02\ntext")
	require.NoError(t, err)
	assert.Equal(t, "# Doc\ntext", body)
	assert.Equal(t, "ann", meta["author"])
	assert.Equal(t, "2024-01-02", meta["date"])
}

func TestStripMagicLines_LegacyURIKey(t *testing.T) {
	_, meta, err := StripMagicLines("%!GEMDOC uri=gemini://h/\nx")
	require.NoError(t, err)
	assert.Equal(t, "gemini://h/", meta["url"])
}

func TestStripMagicLines_UnknownKey(t *testing.T) {
	_, _, err := StripMagicLines("%!GEMDOC flavour=mint\nx")
	assert.ErrorIs(t, err, ErrUnsupportedMetadataKey)
}

func TestMetadata_MergeUnder(t *testing.T) {
	m := Metadata{"author": "caller"}
	m.MergeUnder(Metadata{"author": "magic", "date": "2020-01-01"})
	assert.Equal(t, "caller", m["author"])
	assert.Equal(t, "2020-01-01", m["date"])
}

func TestPercentEncode_Idempotent(t *testing.T) {
	cases := []string{
		"gemini://host/path?q=a b",
		"gemini://host/ünïcode",
		"gemini://host/already%20done",
		"~:/?#[]@!$&'()*+,;=%",
	}
	for _, c := range cases {
		once := percentEncode(c)
		assert.Equalf(t, once, percentEncode(once), "double-encode of %q", c)
	}
}

func TestPercentEncode_Space(t *testing.T) {
	assert.Equal(t, "a%20b", percentEncode("a b"))
}

func TestMetadata_NormalizeReplacesNonASCII(t *testing.T) {
	m := Metadata{"author": "Änn", "url": "gemini://host/ü"}
	m.Normalize()
	assert.Equal(t, "_nn", m["author"])
	assert.Equal(t, "gemini://host/%C3%BC", m["url"])
}

func TestMetadata_ApplyURLDefaults(t *testing.T) {
	cases := []struct {
		url    string
		author string
		date   string
	}{
		{"gemini://h/~ann/posts/2024-03-05.gmi", "ann", "2024-03-05"},
		{"gemini://h/~bob/", "bob", ""},
		{"gemini://h/posts/20240305.gmi", "", "2024-03-05"},
		{"gemini://h/posts/2024_03_05.gmi", "", "2024-03-05"},
		{"gemini://h/posts/2024-03_05.gmi", "", ""}, // mixed separators
		{"gemini://h/posts/20240305", "", ""},       // no trailing non-digit
		{"gemini://h/plain.gmi", "", ""},
	}
	for _, c := range cases {
		m := Metadata{"url": c.url}
		m.ApplyURLDefaults()
		assert.Equalf(t, c.author, m["author"], "author for %s", c.url)
		assert.Equalf(t, c.date, m["date"], "date for %s", c.url)
	}
}

func TestMetadata_URLDefaultsDoNotOverride(t *testing.T) {
	m := Metadata{"url": "gemini://h/~ann/2024-03-05.gmi", "author": "set", "date": "kept"}
	m.ApplyURLDefaults()
	assert.Equal(t, "set", m["author"])
	assert.Equal(t, "kept", m["date"])
}

func TestMetadata_SourceFilename(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"gemini://h/docs/page.gmi", "page.gmi"},
		{"gemini://h/docs/page", "page.gmi"},
		{"gemini://h/docs/sp%20ace.gmi", "sp ace.gmi"},
		{"", "source.gmi"},
	}
	for _, c := range cases {
		m := Metadata{}
		if c.url != "" {
			m["url"] = c.url
		}
		assert.Equalf(t, c.want, m.SourceFilename("source.gmi"), "filename for %q", c.url)
	}
}

func TestDefangKeywords(t *testing.T) {
	out := DefangKeywords("an endstream here and an endobj there")
	assert.Equal(t, "an e\u200bndstream here and an e\u200bndobj there", out)
	assert.NotContains(t, out, "endstream")
	assert.NotContains(t, out, "endobj")
}

func TestDefangKeywords_NoOp(t *testing.T) {
	in := "plain text"
	assert.Equal(t, in, DefangKeywords(in))
}

func TestOutputFilename(t *testing.T) {
	ext := func(mt string) string {
		if strings.HasPrefix(mt, "text/plain") {
			return ".txt"
		}
		return ""
	}
	cases := []struct {
		url       string
		mime      string
		noConvert bool
		want      string
	}{
		{"gemini://h/docs/page.gmi", "text/gemini", false, "page.pdf"},
		{"gemini://h/docs/page.gmi", "text/gemini", true, "page.gmi"},
		{"gemini://h/docs/page", "text/gemini", false, "page.pdf"},
		{"gemini://h/docs/page", "text/gemini", true, "page.gmi"},
		{"gemini://h/notes", "text/plain", true, "notes.txt"},
		{"gemini://h/docs/", "text/gemini", false, "docs.pdf"},
	}
	for _, c := range cases {
		got := OutputFilename(c.url, c.mime, c.noConvert, ext)
		assert.Equalf(t, c.want, got, "output for %s (%s)", c.url, c.mime)
	}
}

func TestCanonicalKey(t *testing.T) {
	for in, want := range map[string]string{
		" Author ": "author",
		"URI":      "url",
		"keywords": "keywords",
	} {
		got, ok := CanonicalKey(in)
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}
	_, ok := CanonicalKey("flavour")
	assert.False(t, ok)
}
