// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// Command gemdoc converts text/gemini documents, local or fetched over
// the gemini protocol, into pdf/gemtext polyglot files.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	gemdoc "github.com/sassoftware/gemdoc"
	"github.com/sassoftware/gemdoc/logger"
)

const cliHelp = `Usage: gemdoc [OPTION]... <GEMINI-URL|INPUT-FILE>

Options
  -o FILE, --output=FILE    Write output to FILE. To print output to stdout,
                            specify a single dash '-' as the output filename.
                            If no output file is specified, the filename will
                            be set automatically based on the source URL.
  -i, --in-place            Modify the input file in place. Or more
                            specifically, replace the input file with the
                            resulting polyglot file. If the input file is
                            already a polyglot file, this will simply update
                            the pdf part of that file to match the contents
                            of the text/gemini part.
  --no-convert              Do not convert the text/gemini file into a binary
                            polyglot. This may be useful to simply download
                            text/gemini files from gemini servers. It also
                            comes in handy when one wants to debug input from
                            a remote source that cannot be converted to pdf.
  -M K=V, --metadata=K=V    Set the metadata key K to value V. Valid keys are
                            'author', 'date', 'url', 'subject' and 'keywords'.
                            This option may be passed multiple times to set
                            more than one key. If the input is already in
                            polyglot format, existing pdf metadata will be
                            preserved.
  --css FILE                Use the specified css file to style the document.
                            This option may be passed multiple times to use
                            multiple stylesheets. If this option is supplied,
                            the default stylesheet will not be applied.
  --print-default-css       Print the default stylesheet to stdout or to the
                            file specified via --output.
  -h, --help                Print this help message and exit.
`

// multiFlag collects a repeatable option.
type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

var hostLikeRe = regexp.MustCompile(`^(//)?[^/.]+\.[^/.]+`)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fail := func(format string, a ...interface{}) int {
		fmt.Fprintf(os.Stderr, format+"\n", a...)
		return 1
	}

	cfg := gemdoc.NewDefaultConfig()
	cfg.DebugOn = os.Getenv("GEMDOC_DEBUG") != ""
	cfg.Logger = func(level logger.LogLevel, msg string, keyvals ...interface{}) {
		if level == logger.DebugLevel && !cfg.DebugOn {
			return
		}
		fmt.Fprintln(os.Stderr, msg)
	}
	logger.SetLogger(cfg.Logger)

	var (
		output          string
		inPlace         bool
		noConvert       bool
		printDefaultCSS bool
		metadataFlags   multiFlag
		cssFiles        multiFlag
	)
	fs := flag.NewFlagSet("gemdoc", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(os.Stderr, cliHelp) }
	fs.StringVar(&output, "o", "", "output file")
	fs.StringVar(&output, "output", "", "output file")
	fs.BoolVar(&inPlace, "i", false, "modify the input file in place")
	fs.BoolVar(&inPlace, "in-place", false, "modify the input file in place")
	fs.BoolVar(&noConvert, "no-convert", false, "write fetched bytes through untouched")
	fs.Var(&metadataFlags, "M", "set metadata key K to value V")
	fs.Var(&metadataFlags, "metadata", "set metadata key K to value V")
	fs.Var(&cssFiles, "css", "stylesheet file")
	fs.BoolVar(&printDefaultCSS, "print-default-css", false, "print the default stylesheet and exit")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			fmt.Print(cliHelp)
			return 0
		}
		return 1
	}
	oFlag := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "o" || f.Name == "output" {
			oFlag = true
		}
	})

	metadata := make(gemdoc.Metadata)
	for _, kv := range metadataFlags {
		var k, v string
		switch {
		case strings.Contains(kv, "="):
			k, v, _ = strings.Cut(kv, "=")
		case strings.Contains(kv, ":"):
			k, v, _ = strings.Cut(kv, ":")
		default:
			k = kv
		}
		key, ok := gemdoc.CanonicalKey(k)
		if !ok || key == "title" {
			return fail("Invalid metadata key '%s'. Valid keys are 'author', 'date', "+
				"'url', 'subject' and 'keywords'.", strings.TrimSpace(k))
		}
		metadata[key] = strings.TrimSpace(v)
	}

	positional := fs.Args()

	if printDefaultCSS {
		if len(positional) > 0 {
			return fail("The --print-default-css option cannot be combined with positional arguments")
		}
		if output == "" {
			output = "-"
		}
		if err := writeOutput(output, false, "", []byte(gemdoc.DefaultCSS)); err != nil {
			return fail("%v", err)
		}
		return 0
	}

	if len(positional) != 1 {
		return fail("Gemdoc takes exactly one positional argument but got %d. To force "+
			"reading data from stdin, specify a single dash '-' as the input file.", len(positional))
	}
	arg := positional[0]

	var (
		doc       []byte
		inputType string
		mimeType  string
		err       error
	)
	switch {
	case arg == "-":
		doc, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fail("reading stdin: %v", err)
		}
		inputType = "local"
	case !strings.HasPrefix(arg, "gemini://") && fileExists(arg):
		doc, err = os.ReadFile(arg)
		if err != nil {
			return fail("%v", err)
		}
		inputType = "local"
	case strings.HasPrefix(arg, "gemini://") || hostLikeRe.MatchString(arg):
		if strings.HasPrefix(arg, "//") {
			arg = "gemini:" + arg
		}
		if !strings.HasPrefix(arg, "gemini://") {
			arg = "gemini://" + arg
		}
		ctx, cancel := context.WithTimeout(context.Background(), cfg.FetchTimeout)
		var finalURL string
		finalURL, mimeType, doc, err = gemdoc.Fetch(ctx, arg, cfg.MaxRedirects)
		cancel()
		if err != nil {
			return fail("%v", err)
		}
		if _, ok := metadata["url"]; !ok {
			metadata["url"] = finalURL
		}
		inputType = "remote"
	default:
		return fail("'%s' does not seem to be a gemini url and there is no such file "+
			"on the local system either.", arg)
	}

	switch {
	case noConvert && inputType == "local":
		return fail("The --no-convert option can only be used with remote inputs")
	case !oFlag && !inPlace && inputType == "local":
		return fail("Either -i or -o must be specified for local inputs")
	case inPlace && oFlag:
		return fail("The -o and -i flags are mutually exclusive")
	case inPlace && inputType != "local":
		return fail("The -i flag can only be used for local inputs")
	case inPlace && arg == "-":
		return fail("The -i flag can not be used to process stdin. To use gemdoc " +
			"as a unix filter, use '-o-' instead.")
	case inPlace:
		fi, err := os.Lstat(arg)
		if err != nil || !fi.Mode().IsRegular() {
			return fail("Cannot modify '%s' in place: Not a regular file", arg)
		}
	}

	if inputType == "remote" {
		if !oFlag {
			output = gemdoc.OutputFilename(arg, mimeType, noConvert, func(mt string) string {
				if exts, _ := mime.ExtensionsByType(mt); len(exts) > 0 {
					return exts[0]
				}
				return ""
			})
			if fileExists(output) {
				return fail("The output file '%s' already exists. This file will not be "+
					"replaced. To replace '%s', use the -o flag to explicitly specify "+
					"the filename.", output, output)
			}
		}
		looksLikePDF := bytes.HasPrefix(bytes.TrimLeft(doc, "\t\n\v\f\r "), []byte("%PDF-"))
		switch {
		case noConvert,
			mimeType == "text/gemini" && looksLikePDF,
			mimeType == "application/pdf" && looksLikePDF:
			if err := writeOutput(output, false, "", doc); err != nil {
				return fail("%v", err)
			}
			return 0
		case gemdoc.Convertible(mimeType) != nil:
			logger.Warn(fmt.Sprintf("Writing non pdf file to %s. The file's mime type "+
				"was reported to be '%s'.", output, mimeType))
			if err := writeOutput(output, false, "", doc); err != nil {
				return fail("%v", err)
			}
			return 0
		}
	}

	isPolyglot := false
	if inputType == "local" {
		isPolyglot, err = gemdoc.IsPolyglot(doc)
		if err != nil {
			return fail("%v", err)
		}
	}

	stylesheets := []string{gemdoc.MinimalCSS}
	for _, f := range cssFiles {
		content, err := os.ReadFile(f)
		if err != nil {
			return fail("Unable to read css file. %v", err)
		}
		stylesheets = append(stylesheets, string(content))
	}
	if len(cssFiles) == 0 {
		stylesheets = append(stylesheets, gemdoc.DefaultCSS)
	}

	engine := newWeasyprintEngine()
	cfg.FlateEncodeStreams = engine.flateEncode
	proc := gemdoc.NewProcessor(cfg, engine)
	ctx := context.Background()

	var polyglot []byte
	if isPolyglot {
		polyglot, err = proc.Reconvert(ctx, doc, metadata, stylesheets)
	} else {
		polyglot, err = proc.Convert(ctx, string(doc), metadata, stylesheets)
	}
	if err != nil {
		return fail("%v", err)
	}

	if err := writeOutput(output, inPlace, arg, polyglot); err != nil {
		return fail("%v", err)
	}
	return 0
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// writeOutput writes data to the output target. In-place writes go
// through a temporary file in the same directory; the final rename is
// the commit point, and a failed attempt leaves the original file
// untouched.
func writeOutput(output string, inPlace bool, target string, data []byte) error {
	if !inPlace {
		if output == "-" {
			_, err := os.Stdout.Write(data)
			return err
		}
		return os.WriteFile(output, data, 0o666)
	}

	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, filepath.Base(target)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}
