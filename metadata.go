// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package gemdoc

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/sassoftware/gemdoc/logger"
)

// Metadata maps the closed gemdoc key set to string values. The legacy
// key "uri" is folded into "url" on entry.
type Metadata map[string]string

// The recognized metadata keys, in the order they are installed into
// the pdf /Info dictionary.
var metadataKeys = []string{"author", "title", "date", "url", "subject", "keywords"}

func isMetadataKey(k string) bool {
	for _, known := range metadataKeys {
		if k == known {
			return true
		}
	}
	return false
}

// CanonicalKey folds legacy aliases and case. ok is false for keys
// outside the closed set.
func CanonicalKey(k string) (string, bool) {
	k = strings.ToLower(strings.TrimSpace(k))
	if k == "uri" {
		k = "url"
	}
	return k, isMetadataKey(k)
}

// Clone returns a shallow copy.
func (m Metadata) Clone() Metadata {
	c := make(Metadata, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// MergeUnder fills in keys from lower without overwriting existing
// entries, implementing the precedence chain caller > magic line >
// embedded polyglot.
func (m Metadata) MergeUnder(lower Metadata) {
	for k, v := range lower {
		if _, ok := m[k]; !ok {
			m[k] = v
		}
	}
}

const magicMetadataPrefix = "%!GEMDOC"

// StripMagicLines splits a raw text/gemini document into its body and
// the metadata carried on %!GEMDOC KEY=VALUE lines. An unknown key
// fails the whole document.
func StripMagicLines(doc string) (string, Metadata, error) {
	meta := make(Metadata)
	var body []string
	for _, line := range strings.Split(doc, "\n") {
		if !strings.HasPrefix(line, magicMetadataPrefix) {
			body = append(body, line)
			continue
		}
		kv := line[len(magicMetadataPrefix):]
		k, v, _ := strings.Cut(kv, "=")
		key, ok := CanonicalKey(k)
		if !ok {
			return "", nil, fmt.Errorf("%w: %q", ErrUnsupportedMetadataKey, strings.TrimSpace(k))
		}
		meta[key] = strings.TrimSpace(v)
	}
	return strings.Join(body, "\n"), meta, nil
}

// urlSafe is the set of characters, beyond the unreserved ones, that
// percent-encoding leaves untouched. Keeping '%' in the set makes the
// encoding idempotent.
const urlSafe = "~:/?#[]@!$&'()*+,;=%"

func isURLSafe(b byte) bool {
	if b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' {
		return true
	}
	if b == '-' || b == '.' || b == '_' || b == '~' {
		return true
	}
	return strings.IndexByte(urlSafe, b) >= 0
}

// percentEncode escapes every byte outside the safe set. Applying it
// twice yields the same result as applying it once.
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isURLSafe(c) {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// Normalize rewrites metadata values into the ascii forms installed in
// the pdf: the url is percent-encoded, everything else has non-ASCII
// characters replaced by '_'. The result must be pure ascii; anything
// else is a broken invariant worth crashing on.
func (m Metadata) Normalize() {
	for k, v := range m {
		if k == "url" {
			enc := percentEncode(v)
			if enc != v {
				logger.Warn(fmt.Sprintf("Percent-escaped characters in url %q", v))
				m[k] = enc
			}
			continue
		}
		clean, changed := asciiClean(v)
		if changed {
			logger.Warn(fmt.Sprintf("Replaced non-ASCII characters in metadata key %q with '_'", k))
			m[k] = clean
		}
	}
	for k, v := range m {
		if !isASCII(v) {
			logger.Error(fmt.Sprintf("metadata key %q still non-ascii after normalization", k))
			panic(fmt.Sprintf("ascii encoding failure for metadata key %q", k))
		}
	}
}

var urlDateRe = regexp.MustCompile(`^([0-9]{4})([-/_]?)([0-9]{2})([-/_]?)([0-9]{2})[^0-9]`)

// ApplyURLDefaults derives missing author and date entries from the
// url: a /~user/ path prefix names the author, and a YYYY-MM-DD shaped
// final path segment (separators -, /, _ or none, used consistently)
// names the date.
func (m Metadata) ApplyURLDefaults() {
	rawurl := m["url"]
	if rawurl == "" {
		return
	}
	if _, ok := m["author"]; ok {
		if _, ok := m["date"]; ok {
			return
		}
	}
	u, err := url.Parse(rawurl)
	if err != nil {
		return
	}
	if _, ok := m["author"]; !ok && strings.HasPrefix(u.Path, "/~") {
		author := strings.TrimPrefix(u.Path, "/~")
		if i := strings.IndexByte(author, '/'); i >= 0 {
			author = author[:i]
		}
		m["author"] = author
	}
	if _, ok := m["date"]; !ok {
		last := u.Path[strings.LastIndexByte(u.Path, '/')+1:]
		if g := urlDateRe.FindStringSubmatch(last); g != nil && g[2] == g[4] {
			m["date"] = fmt.Sprintf("%s-%s-%s", g[1], g[3], g[5])
		}
	}
}

// SourceFilename derives the embedded attachment's file name from the
// url metadata, falling back to fallback when the url has no usable
// path.
func (m Metadata) SourceFilename(fallback string) string {
	u, err := url.Parse(m["url"])
	if err != nil || u.Path == "" {
		return fallback
	}
	name := u.Path[strings.LastIndexByte(u.Path, '/')+1:]
	if strings.Contains(name, "%") {
		if unq, err := url.PathUnescape(name); err == nil {
			name = unq
		}
	}
	if name == "" {
		return fallback
	}
	if !hasExtensionRe.MatchString(name) {
		name += ".gmi"
	}
	return name
}

var hasExtensionRe = regexp.MustCompile(`[^\.]\.[^\.]`)

// DefangKeywords hides the pdf structural keywords endstream and
// endobj from the object parser by inserting a zero width space after
// their first character. Without this the embedded source could
// terminate its own stream early.
func DefangKeywords(doc string) string {
	for _, kw := range []string{"endstream", "endobj"} {
		if !strings.Contains(doc, kw) {
			continue
		}
		doc = strings.ReplaceAll(doc, kw, kw[:1]+"\u200b"+kw[1:])
		logger.Warn(fmt.Sprintf("Warning: Occurrences of the '%s' keyword have been escaped "+
			"by inserting a zero width space after the first character", kw))
	}
	return doc
}

// OutputFilename derives a local file name for a fetched document:
// the final path segment, converted to the target extension for
// text/gemini conversions, or extended with the mime type's preferred
// extension otherwise.
func OutputFilename(rawurl, mimeType string, noConvert bool, extFor func(string) string) string {
	u, err := url.Parse(rawurl)
	p := rawurl
	if err == nil {
		p = u.Path
	}
	out := strings.TrimLeft(path.Base(strings.TrimRight(p, "/")), ".~/")
	if mimeType == "text/gemini" && strings.HasSuffix(out, ".gmi") && !noConvert {
		out = strings.TrimSuffix(out, ".gmi") + ".pdf"
	}
	if !outputExtRe.MatchString(out) {
		if mimeType == "text/gemini" {
			if noConvert {
				out += ".gmi"
			} else {
				out += ".pdf"
			}
		} else if extFor != nil {
			out += extFor(mimeType)
		}
	}
	return out
}

var outputExtRe = regexp.MustCompile(`[^\.]\.[^\.]+$`)
