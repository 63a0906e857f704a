// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package gemdoc

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/sassoftware/gemdoc/logger"
)

// IsPolyglot reports whether doc is a gemdoc polyglot: a pdf whose
// second line carries the magic signature. A pdf without the signature
// is rejected with ErrMissingSignature; anything that is not a pdf is
// treated as plain text/gemini.
func IsPolyglot(doc []byte) (bool, error) {
	trimmed := bytes.TrimLeft(doc, "\t\n\v\f\r ")
	if !bytes.HasPrefix(trimmed, []byte("%PDF-")) {
		return false, nil
	}
	nl := bytes.IndexByte(trimmed, '\n')
	if nl < 0 || !bytes.HasPrefix(trimmed[nl+1:], []byte(magicLine)) {
		return false, fmt.Errorf("received a pdf file but the gemdoc signature %q is missing: %w",
			magicLine, ErrMissingSignature)
	}
	return true, nil
}

// infoKeyName maps an /Info dictionary entry back to its metadata key.
func infoKeyName(k string) string {
	switch k {
	case "/Author":
		return "author"
	case "/Title":
		return "title"
	case "/PublishingDate":
		return "date"
	case "/URL":
		return "url"
	case "/Subject":
		return "subject"
	case "/Keywords":
		return "keywords"
	}
	return ""
}

// recoverMetadata reads the gemdoc keys back out of the /Info
// dictionary. ASCII (…) literals and UTF-16 <…> hex strings are
// understood; other value shapes are skipped.
func recoverMetadata(f *File) (Metadata, error) {
	info, err := f.resolveDict("/Info")
	if err != nil {
		return nil, err
	}
	meta := make(Metadata)
	for _, e := range info.entries {
		key := infoKeyName(string(e.key))
		if key == "" {
			continue
		}
		raw := string(e.val.raw)
		switch {
		case strings.HasPrefix(raw, "(") && strings.HasSuffix(raw, ")"):
			meta[key] = raw[1 : len(raw)-1]
		case strings.HasPrefix(raw, "<") && strings.HasSuffix(raw, ">"):
			decoded, err := decodeUTF16Hex(raw[1 : len(raw)-1])
			if err != nil {
				logger.Warn(fmt.Sprintf("skipping undecodable metadata value for %s: %v", e.key, err))
				continue
			}
			meta[key] = decoded
		}
	}
	return meta, nil
}

// ExtractSource recovers the embedded text/gemini source and the
// stored metadata from a polyglot file. The source comes back
// byte-exact: the single newline the assembler appends to the stream
// payload is stripped again.
func ExtractSource(doc []byte) (string, Metadata, error) {
	f, err := ParseFile(doc, nil, "", false)
	if err != nil {
		return "", nil, err
	}
	meta, err := recoverMetadata(f)
	if err != nil {
		return "", nil, err
	}

	start := bytes.Index(doc, []byte("stream\n"))
	if start < 0 {
		return "", nil, parseErr(MissingEndstream, doc)
	}
	start += len("stream\n")
	end := bytes.Index(doc[start:], []byte("\nendstream\nendobj\n"))
	if end < 0 {
		return "", nil, parseErr(MissingEndstream, doc[start:])
	}
	source := string(doc[start : start+end])
	source = strings.TrimSuffix(source, "\n")
	logger.Debug(fmt.Sprintf("extracted %d bytes of embedded source", len(source)), true)
	return source, meta, nil
}
