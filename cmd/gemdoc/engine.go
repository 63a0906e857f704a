// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/sassoftware/gemdoc/logger"
)

// weasyprintEngine renders html through the weasyprint executable.
// The engine's capabilities depend on its version: pdf/a-3b variants
// arrived in 56, fully conforming output in 58, and uncompressed
// stream output (which lets the assembler deflate-then-ascii85 the
// streams itself) in 59.
type weasyprintEngine struct {
	command     string
	extraArgs   []string
	flateEncode bool
}

var versionRe = regexp.MustCompile(`(\d+)(?:\.(\d+))?`)

func newWeasyprintEngine() *weasyprintEngine {
	e := &weasyprintEngine{command: "weasyprint"}

	out, err := exec.Command(e.command, "--version").Output()
	if err != nil {
		// Leave the engine unconfigured; Render will surface the
		// real failure.
		return e
	}
	major, minor := 0, 0
	if m := versionRe.FindStringSubmatch(string(out)); m != nil {
		major, _ = strconv.Atoi(m[1])
		minor, _ = strconv.Atoi(m[2])
	}
	switch {
	case major < 56:
		logger.Warn(fmt.Sprintf("The current version of weasyprint (version %d.%d) does not "+
			"include support for generating PDF/A documents. To have gemdoc generate a file "+
			"that conforms to PDF/A requirements, make sure to use weasyprint version 56.0 "+
			"or above.", major, minor))
	case major < 59:
		if major < 57 || (major == 57 && minor < 2) {
			logger.Warn(fmt.Sprintf("The current version of weasyprint (version %d.%d) is known "+
				"to generate pdfs that do not fully conform to the PDF/A-3B specification. To "+
				"have gemdoc generate a file that fully conforms to PDF/A-3B requirements, "+
				"make sure to use weasyprint version 58 or above.", major, minor))
		}
		e.extraArgs = []string{"--pdf-version", "1.7", "--pdf-variant", "pdf/a-3b"}
	default:
		e.extraArgs = []string{"--pdf-version", "1.7", "--pdf-variant", "pdf/a-3b", "--uncompressed-pdf"}
		e.flateEncode = true
	}
	return e
}

func (e *weasyprintEngine) Render(ctx context.Context, html string, stylesheets []string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "gemdoc-css-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	args := append([]string{}, e.extraArgs...)
	for i, css := range stylesheets {
		p := filepath.Join(dir, fmt.Sprintf("style%d.css", i))
		if err := os.WriteFile(p, []byte(css), 0o600); err != nil {
			return nil, err
		}
		args = append(args, "-s", p)
	}
	args = append(args, "-e", "utf-8", "-", "-")

	cmd := exec.CommandContext(ctx, e.command, args...)
	cmd.Stdin = strings.NewReader(html)
	var pdf bytes.Buffer
	cmd.Stdout = &pdf
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("weasyprint: %w", err)
	}
	return pdf.Bytes(), nil
}
