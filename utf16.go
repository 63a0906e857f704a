// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package gemdoc

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/text/encoding/unicode"

	"github.com/sassoftware/gemdoc/logger"
)

var (
	utf16Encoding = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
	// Decoding honours a BOM when present and falls back to little
	// endian otherwise, matching how pdf text strings are produced in
	// the wild.
	utf16Fallback = unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
)

// utf16HexString encodes s as a pdf hex string in UTF-16BE with a
// leading byte order mark: <feff…>.
func utf16HexString(s string) []byte {
	b, err := utf16Encoding.NewEncoder().Bytes([]byte(s))
	if err != nil {
		logger.Error(fmt.Sprintf("utf-16 encoding of %q failed: %v", s, err))
		panic(err)
	}
	return []byte("<" + hex.EncodeToString(b) + ">")
}

// utf16HexBody encodes s without delimiters or byte order mark, for
// splicing into an existing hex string.
func utf16HexBody(s string) []byte {
	b, err := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s))
	if err != nil {
		logger.Error(fmt.Sprintf("utf-16 encoding of %q failed: %v", s, err))
		panic(err)
	}
	return []byte(hex.EncodeToString(b))
}

// decodeUTF16Hex decodes the inner digits of a <…> hex string back to
// UTF-8.
func decodeUTF16Hex(inner string) (string, error) {
	raw, err := hex.DecodeString(inner)
	if err != nil {
		return "", err
	}
	out, err := utf16Fallback.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func sha256hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// isASCII reports whether s contains only 7-bit characters.
func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return false
		}
	}
	return true
}

// asciiClean replaces every non-ASCII rune with '_'.
func asciiClean(s string) (string, bool) {
	if isASCII(s) {
		return s, false
	}
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r > 0x7f {
			out = append(out, '_')
		} else {
			out = append(out, r)
		}
	}
	return string(out), true
}
