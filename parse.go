// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package gemdoc

import (
	"bytes"
	"regexp"
	"strconv"

	"github.com/sassoftware/gemdoc/logger"
)

var (
	objHeaderRe = regexp.MustCompile(`^(\d+)\s+(\d+)\s+obj\s+`)
	preObjRe    = regexp.MustCompile(`\d+\s+\d+\s+o`)
	xrefRe      = regexp.MustCompile(`^[\r\n]*xref`)
	refRe       = regexp.MustCompile(`^\d+\s+\d+\s+R`)
	nameEndRe   = regexp.MustCompile(`[\s()<>\[\]{}/%]`)
	numEndRe    = regexp.MustCompile(`[^0-9.\-]`)
)

func skipSpace(b []byte) []byte {
	return bytes.TrimLeft(b, "\x00\t\n\f\r ")
}

// parseValue consumes one value from b. Used for dictionary values and
// array items; indirect references are kept as opaque tokens and never
// dereferenced here.
func parseValue(b []byte) ([]byte, value, error) {
	switch {
	case bytes.HasPrefix(b, []byte("/")):
		end := len(b)
		if loc := nameEndRe.FindIndex(b[1:]); loc != nil {
			end = loc[0] + 1
		}
		return b[end:], value{kind: kindName, raw: b[:end]}, nil

	case bytes.HasPrefix(b, []byte("(")):
		depth := 0
		for i := 0; i < len(b); i++ {
			switch b[i] {
			case '(':
				depth++
			case ')':
				depth--
				if depth == 0 {
					return b[i+1:], value{kind: kindLiteralString, raw: b[:i+1]}, nil
				}
			}
		}
		return nil, value{}, parseErr(UnexpectedToken, b)

	case bytes.HasPrefix(b, []byte("[")):
		rest, items, err := parseList(b, "[", "]")
		if err != nil {
			return nil, value{}, err
		}
		return rest, arrayValue(items), nil

	case bytes.HasPrefix(b, []byte("<<")):
		rest, d, err := parseDict(b)
		if err != nil {
			return nil, value{}, err
		}
		return rest, dictValue(d), nil

	case bytes.HasPrefix(b, []byte("<")):
		end := bytes.IndexByte(b, '>')
		if end < 0 {
			return nil, value{}, parseErr(UnexpectedToken, b)
		}
		return b[end+1:], value{kind: kindHexString, raw: b[:end+1]}, nil

	case refRe.Match(b):
		end := bytes.IndexByte(b, 'R') + 1
		return b[end:], value{kind: kindRef, raw: b[:end]}, nil

	case len(b) > 0 && (b[0] == '-' || (b[0] >= '0' && b[0] <= '9')):
		end := len(b)
		if loc := numEndRe.FindIndex(b); loc != nil {
			end = loc[0]
		}
		return b[end:], value{kind: kindNumber, raw: b[:end]}, nil

	case bytes.HasPrefix(b, []byte("null")):
		return b[4:], value{kind: kindNull, raw: b[:4]}, nil

	case bytes.HasPrefix(b, []byte("true")):
		return b[4:], value{kind: kindTrue, raw: b[:4]}, nil

	case bytes.HasPrefix(b, []byte("false")):
		return b[5:], value{kind: kindFalse, raw: b[:5]}, nil
	}
	return nil, value{}, parseErr(UnexpectedToken, b)
}

// parseList consumes a delimited value sequence. Comments between
// items are stripped.
func parseList(b []byte, open, close string) ([]byte, []value, error) {
	b = skipSpace(b)
	if !bytes.HasPrefix(b, []byte(open)) {
		return nil, nil, parseErr(UnexpectedToken, b)
	}
	b = b[len(open):]
	var items []value
	for {
		b = skipSpace(b)
		if len(b) == 0 {
			return nil, nil, parseErr(UnexpectedToken, b)
		}
		if b[0] == '%' {
			// Strip all comments from within dictionaries
			if eol := bytes.IndexAny(b, "\r\n"); eol >= 0 {
				b = b[eol+1:]
			} else {
				b = nil
			}
			continue
		}
		if bytes.HasPrefix(b, []byte(close)) {
			return b[len(close):], items, nil
		}
		var (
			v   value
			err error
		)
		b, v, err = parseValue(b)
		if err != nil {
			return nil, nil, err
		}
		items = append(items, v)
	}
}

// parseDict consumes a <<…>> dictionary, pairing alternating keys and
// values in source order.
func parseDict(b []byte) ([]byte, *dict, error) {
	rest, items, err := parseList(b, "<<", ">>")
	if err != nil {
		return nil, nil, err
	}
	if len(items)%2 != 0 {
		return nil, nil, parseErr(UnexpectedToken, b)
	}
	d := newDict()
	for i := 0; i < len(items); i += 2 {
		k := items[i]
		if k.kind == kindArray || k.kind == kindDict {
			return nil, nil, parseErr(UnexpectedToken, b)
		}
		d.set(string(k.raw), items[i+1])
	}
	return rest, d, nil
}

// parseObject consumes one indirect object definition. The stream span
// is recorded exactly as the bytes between "stream\n" and the
// endstream keyword.
func parseObject(b []byte) (*object, []byte, error) {
	b = skipSpace(b)
	m := objHeaderRe.FindSubmatch(b)
	if m == nil {
		return nil, nil, parseErr(UnexpectedToken, b)
	}
	if string(m[2]) != "0" {
		return nil, nil, parseErr(UnsupportedRevision, b)
	}
	num, err := strconv.Atoi(string(m[1]))
	if err != nil {
		return nil, nil, parseErr(UnexpectedToken, b)
	}
	b = b[len(m[0]):]

	obj := &object{num: num, dict: newDict()}
	if bytes.HasPrefix(b, []byte("<<")) {
		b, obj.dict, err = parseDict(b)
		if err != nil {
			return nil, nil, err
		}
	}
	b = skipSpace(b)
	if bytes.HasPrefix(b, []byte("stream\n")) {
		rest := b[len("stream\n"):]
		end := bytes.Index(rest, []byte("endstream"))
		if end < 0 {
			return nil, nil, parseErr(MissingEndstream, b)
		}
		obj.isStream = true
		obj.stream = rest[:end]
		after := rest[end+len("endstream"):]
		endobj := bytes.Index(after, []byte("endobj"))
		if endobj < 0 {
			return nil, nil, parseErr(MissingEndobj, after)
		}
		return obj, after[endobj+len("endobj"):], nil
	}
	endobj := bytes.Index(b, []byte("endobj"))
	if endobj < 0 {
		return nil, nil, parseErr(MissingEndobj, b)
	}
	obj.contents = b[:endobj]
	return obj, b[endobj+len("endobj"):], nil
}

// ParseFile reads the rendering engine's pdf output into an editable
// object table. When source is non-nil it is attached as an embedded
// file per the polyglot layout; filename names the attachment and
// flate enables stream compression during serialization.
//
// xref sections are parsed only to harvest the trailer dictionary; the
// table itself is rebuilt from scratch on serialization.
func ParseFile(binary, source []byte, filename string, flate bool) (*File, error) {
	f := &File{
		objects:        make(map[int]*object),
		trailer:        newDict(),
		flate:          flate,
		sourceFilename: filename,
		binaryHash:     sha256hex(binary),
	}
	if source != nil {
		f.source = source
		f.sourceHash = sha256hex(source)
	}

	b := binary
	for len(b) > 0 {
		if xrefRe.Match(b) {
			s := bytes.Index(b, []byte("trailer"))
			e := bytes.Index(b, []byte("startxref"))
			if s >= 0 && s+len("trailer") < e {
				_, d, err := parseDict(skipSpace(b[s+len("trailer") : e]))
				if err != nil {
					return nil, err
				}
				f.trailer = d
			}
			eof := bytes.Index(b, []byte("%%EOF"))
			if eof < 0 {
				b = nil
			} else {
				b = b[eof+len("%%EOF"):]
			}
			continue
		}
		loc := preObjRe.FindIndex(b)
		if loc == nil {
			break
		}
		b = b[loc[0]:]
		obj, rest, err := parseObject(b)
		if err != nil {
			return nil, err
		}
		f.objects[obj.num] = obj
		b = rest
	}
	logger.Debug("parsed pdf object table", "objects", len(f.objects), true)

	if f.source != nil {
		f.sourceNum = f.maxObjNum() + 1
		if err := f.makeAttachment(); err != nil {
			return nil, err
		}
	}
	return f, nil
}
