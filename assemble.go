// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// Package gemdoc converts text/gemini documents into pdf/gemtext
// polyglot files.
//
// # Overview
//
// A polyglot file is a single byte sequence that is simultaneously a
// valid pdf document and a valid text/gemini document. The pdf header
// doubles as a gemini comment line, the second line carries the gemdoc
// magic signature, and a preformat toggle hides the binary remainder
// from gemini readers. The original source is embedded as a pdf
// EmbeddedFile stream placed between a pair of toggle lines so gemini
// readers render it as body text.
//
// The pipeline is: normalize the source (metadata.go), translate it to
// html (translate.go), hand the html to an external rendering engine
// (processor.go), parse the engine's pdf output into an editable
// object table (parse.go, object.go), attach the source and rewrite
// the metadata, identifier and cross-reference table (this file), and
// emit the polyglot bytes. extract.go reads such files back.
//
// Objects are created by the parser, mutated only by the assembler,
// and discarded with the File. Indirect references are kept as opaque
// tokens and never dereferenced; only /Root, /Info and the trailer are
// addressed by name.
package gemdoc

import (
	"bytes"
	"compress/zlib"
	"encoding/ascii85"
	"fmt"
	"sort"

	"github.com/sassoftware/gemdoc/logger"
)

// The second-line signatures. magicLine marks a polyglot with an
// embedded source; plainMagicLine marks a re-serialized pdf without
// one. Both are immutable process-wide constants.
const (
	magicLine      = "%\u264a\ufe0e\U0001f5ce\ufe0e" // gemini twins + document glyph, text presentation
	plainMagicLine = "%\u00b6\U0001f5ce\ufe0e"       // pilcrow + document glyph
)

const producerNote = " (with gemdoc postprocessing)"

// File is an editable pdf document: an object table keyed by object
// number, the trailer dictionary, and optionally an attached
// text/gemini source.
type File struct {
	objects map[int]*object
	trailer *dict

	source         []byte
	sourceNum      int
	sourceFilename string
	sourceHash     string
	binaryHash     string
	flate          bool
}

func (f *File) maxObjNum() int {
	max := 0
	for n := range f.objects {
		if n > max {
			max = n
		}
	}
	return max
}

// resolveDict follows a trailer reference like /Root or /Info to the
// dictionary of the referenced object.
func (f *File) resolveDict(key string) (*dict, error) {
	ref, ok := f.trailer.get(key)
	if !ok {
		return nil, fmt.Errorf("trailer has no %s entry", key)
	}
	num, ok := ref.refTarget()
	if !ok {
		return nil, fmt.Errorf("trailer %s is not an indirect reference", key)
	}
	obj, ok := f.objects[num]
	if !ok {
		return nil, fmt.Errorf("trailer %s references missing object %d", key, num)
	}
	return obj.dict, nil
}

// makeAttachment allocates the embedded-file object number, creates
// the /Filespec companion and wires both into the document catalog.
// The embedded-file object itself is emitted literally during
// serialization so its stream can sit between the gemini preformat
// toggles.
func (f *File) makeAttachment() error {
	root, err := f.resolveDict("/Root")
	if err != nil {
		return err
	}
	g := f.sourceNum
	filename := utf16HexString(f.sourceFilename)

	ef := newDict()
	ef.set("/F", refValue(g))
	spec := newDict()
	spec.set("/Type", nameValue("/Filespec"))
	spec.set("/AFRelationship", nameValue("/Source"))
	spec.set("/F", hexValue(filename))
	spec.set("/UF", hexValue(filename))
	spec.set("/EF", dictValue(ef))
	f.objects[g+1] = &object{num: g + 1, dict: spec}

	embedded := newDict()
	embedded.set("/Names", arrayValue([]value{hexValue(filename), refValue(g + 1)}))
	names := newDict()
	names.set("/EmbeddedFiles", dictValue(embedded))
	root.set("/Names", dictValue(names))

	if af, ok := root.get("/AF"); ok && af.kind == kindArray {
		af.arr = append(af.arr, refValue(g+1))
		root.set("/AF", af)
	} else {
		root.set("/AF", arrayValue([]value{refValue(g + 1)}))
	}

	f.trailer.set("/Size", numberValue(g+2))
	logger.Debug(fmt.Sprintf("attachment wired: embedded=%d filespec=%d", g, g+1), true)
	return nil
}

// pdfInfoKey maps a metadata key to its /Info dictionary entry.
func pdfInfoKey(k string) string {
	switch k {
	case "author":
		return "/Author"
	case "title":
		return "/Title"
	case "date":
		return "/PublishingDate"
	case "url":
		return "/URL"
	case "subject":
		return "/Subject"
	case "keywords":
		return "/Keywords"
	}
	return ""
}

// SetMetadata installs the normalized metadata into the /Info
// dictionary as UTF-16BE hex strings, dropping entries the engine left
// empty.
func (f *File) SetMetadata(meta Metadata) error {
	info, err := f.resolveDict("/Info")
	if err != nil {
		return err
	}
	for _, k := range info.keys() {
		if v, ok := info.get(k); ok && string(v.raw) == "()" {
			info.del(k)
		}
	}
	for _, k := range metadataKeys {
		v, ok := meta[k]
		if !ok {
			continue
		}
		if !isASCII(v) {
			logger.Error(fmt.Sprintf("metadata key %q escaped normalization: %q", k, v))
			panic(fmt.Sprintf("ascii encoding failure for metadata key %q", k))
		}
		info.set(pdfInfoKey(k), hexValue(utf16HexString(v)))
	}
	return nil
}

// installProducer appends the postprocessing note inside the existing
// /Producer delimiters and stamps /Creator. The entry moves to the end
// of the dictionary, mirroring a pop-and-reinsert.
func installProducer(info *dict) {
	info.set("/Creator", literalValue("(gemdoc)"))
	p, ok := info.get("/Producer")
	if !ok {
		return
	}
	info.del("/Producer")
	raw := p.raw
	switch {
	case bytes.HasPrefix(raw, []byte("(")) && bytes.HasSuffix(raw, []byte(")")):
		raw = append(append(append([]byte{}, raw[:len(raw)-1]...), producerNote...), ')')
		p = literalValue(string(raw))
	case bytes.HasPrefix(raw, []byte("<")) && bytes.HasSuffix(raw, []byte(">")):
		spliced := append(append(append([]byte{}, raw[:len(raw)-1]...), utf16HexBody(producerNote)...), '>')
		p = hexValue(spliced)
	}
	info.set("/Producer", p)
}

// installID writes the /ID pair: sha-256 of the utf-8 source and
// sha-256 of the engine's pdf bytes, each as lowercase hex.
func (f *File) installID() error {
	if f.sourceHash == "" {
		return fmt.Errorf("unable to set primary ID for pdf document without a text/gemini representation")
	}
	if f.binaryHash == "" {
		return fmt.Errorf("unable to set secondary ID for pdf document without a pdf representation")
	}
	f.trailer.set("/ID", rawValue("[<"+f.sourceHash+"><"+f.binaryHash+">]"))
	return nil
}

func zlibCompress(b []byte) []byte {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	zw.Write(b)
	zw.Close()
	return buf.Bytes()
}

func ascii85Encode(b []byte) []byte {
	var buf bytes.Buffer
	enc := ascii85.NewEncoder(&buf)
	enc.Write(b)
	enc.Close()
	buf.WriteString("~>")
	return buf.Bytes()
}

// serialize emits one indirect object. Streams are re-encoded as
// ASCII85 (optionally deflated first) so the binary payload survives
// being read as text; a stream that would open with a gemini preformat
// toggle is space-stuffed.
func (o *object) serialize(flate bool) []byte {
	d := o.dict.clone()
	var filters []value
	if fv, ok := d.get("/Filter"); ok {
		if fv.kind == kindArray {
			filters = fv.arr
		} else {
			filters = []value{fv}
		}
		d.del("/Filter")
	}

	var body []byte
	if o.isStream {
		s := o.stream
		if flate {
			s = zlibCompress(s)
			filters = append([]value{nameValue("/FlateDecode")}, filters...)
		}
		s = ascii85Encode(s)
		if bytes.HasPrefix(s, []byte("```")) {
			s = append([]byte(" "), s...)
		}
		filters = append([]value{nameValue("/ASCII85Decode")}, filters...)

		body = make([]byte, 0, len(s)+32)
		body = append(body, "\rstream\n"...)
		body = append(body, s...)
		body = append(body, "\rendstream\r"...)

		if _, ok := d.get("/Length"); ok {
			d.set("/Length", numberValue(len(s)))
		}
		d.del("/Length1")
	} else {
		body = bytes.ReplaceAll(o.contents, []byte("\n"), []byte("\r"))
	}

	if len(filters) == 1 {
		d.set("/Filter", filters[0])
	} else if len(filters) > 1 {
		d.set("/Filter", arrayValue(filters))
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "%d 0 obj\r", o.num)
	if d.len() > 0 {
		out.Write(d.serialize())
	}
	out.Write(body)
	if out.Bytes()[out.Len()-1] != '\r' {
		out.WriteByte('\r')
	}
	out.WriteString("endobj\r")
	return out.Bytes()
}

// Serialize emits the polyglot byte layout: pdf header, signature
// line, gemini preformat scaffolding, the embedded source, all other
// objects in ascending order, and a rebuilt cross-reference table.
// Objects use \r line terminators to stay on pdf's side of the
// polyglot; every recorded offset points at the first byte of the
// corresponding object definition.
func (f *File) Serialize() ([]byte, error) {
	info, err := f.resolveDict("/Info")
	if err != nil {
		return nil, err
	}
	installProducer(info)

	var out bytes.Buffer
	offsets := make(map[int]int)

	if f.source != nil {
		if err := f.installID(); err != nil {
			return nil, err
		}
		out.WriteString("%PDF-1.7\n" + magicLine + "\n```\n```\r")
		offsets[f.sourceNum] = out.Len()
		n := len(f.source)
		fmt.Fprintf(&out,
			"%d 0 obj\r<</Type/EmbeddedFile/Subtype/text#2fgemini/Params<</Size %d>>/Length %d>>\rstream\n",
			f.sourceNum, n+1, n+1)
		out.Write(f.source)
		out.WriteString("\n\nendstream\nendobj\n")
		out.WriteString("```% What follows is a pdf representation of this file\n")
	} else {
		out.WriteString("%PDF-1.7\n" + plainMagicLine + "\n")
	}

	nums := make([]int, 0, len(f.objects))
	for n := range f.objects {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	for _, n := range nums {
		offsets[n] = out.Len()
		out.Write(f.objects[n].serialize(f.flate))
	}

	startxref := out.Len()
	maxNum := 0
	for n := range offsets {
		if n > maxNum {
			maxNum = n
		}
	}
	fmt.Fprintf(&out, "xref\r0 %d\r", maxNum+1)
	out.WriteString("0000000000 65535 f \r")
	lastFree := 0
	for i := 1; i <= maxNum; i++ {
		if off, ok := offsets[i]; ok {
			fmt.Fprintf(&out, "%010d 00000 n \r", off)
		} else {
			fmt.Fprintf(&out, "%010d 00001 f \r", lastFree)
			lastFree = i
		}
	}
	out.WriteString("trailer\r")
	out.Write(f.trailer.serialize())
	out.WriteString("\r")
	fmt.Fprintf(&out, "startxref\r%d\r%%%%EOF\n", startxref)

	logger.Debug(fmt.Sprintf("serialized %d objects, %d bytes", len(offsets), out.Len()), true)
	return out.Bytes(), nil
}
