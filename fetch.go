// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package gemdoc

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/sassoftware/gemdoc/logger"
)

// DefaultGeminiPort is used when the url names no port.
const DefaultGeminiPort = "1965"

// statusLineWindow bounds the server's status line: two status digits,
// a space, up to 1024 bytes of meta and CRLF.
const statusLineWindow = 1029

// Fetch retrieves a gemini url and returns the final url (after up to
// maxRedirects redirects), the reported mime type and the body.
// text/* bodies are transcoded to UTF-8 according to the charset
// parameter.
//
// Certificate and hostname verification are off: trust-on-first-use
// policies are the caller's concern.
func Fetch(ctx context.Context, rawurl string, maxRedirects int) (string, string, []byte, error) {
	if maxRedirects <= 0 {
		return "", "", nil, ErrTooManyRedirects
	}
	rawurl = strings.NewReplacer("\r\n", "%0A", "\n", "%0A").Replace(rawurl)
	u, err := url.Parse(rawurl)
	if err != nil {
		return "", "", nil, fmt.Errorf("parse url %q: %w", rawurl, err)
	}
	if u.Scheme != "gemini" {
		return "", "", nil, fmt.Errorf("%w %q", ErrUnsupportedURLScheme, u.Scheme)
	}

	host, port := u.Host, DefaultGeminiPort
	if h, p, err := net.SplitHostPort(u.Host); err == nil {
		host, port = h, p
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	query := strings.ReplaceAll(u.RawQuery, " ", "%20")
	reqURL := u.Scheme + "://" + u.Host + path
	if query != "" {
		reqURL += "?" + query
	}

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config: &tls.Config{
			ServerName:         host,
			InsecureSkipVerify: true,
			MinVersion:         tls.VersionTLS12,
		},
	}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return "", "", nil, fmt.Errorf("connect to %s: %w", host, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if _, err := conn.Write([]byte(reqURL + "\r\n")); err != nil {
		return "", "", nil, fmt.Errorf("send request: %w", err)
	}

	// The status line must arrive within the first 1029 bytes; some
	// servers deliver it across several reads.
	crlf := []byte("\r\n")
	buf := make([]byte, 0, statusLineWindow)
	tmp := make([]byte, statusLineWindow)
	var readErr error
	for len(buf) < statusLineWindow && !bytes.Contains(buf, crlf) {
		n, err := conn.Read(tmp[:statusLineWindow-len(buf)])
		buf = append(buf, tmp[:n]...)
		if err != nil {
			readErr = err
			break
		}
	}
	sep := bytes.Index(buf, crlf)
	if sep < 0 {
		if readErr != nil && readErr != io.EOF {
			return "", "", nil, fmt.Errorf("read status line: %w", readErr)
		}
		return "", "", nil, fmt.Errorf("%w: server response too long", ErrBadGeminiStatus)
	}
	header := string(buf[:sep])
	rest := buf[sep+2:]

	if len(header) < 2 || !isDigit(header[0]) || !isDigit(header[1]) {
		return "", "", nil, fmt.Errorf("%w: %q", ErrBadGeminiStatus, header)
	}

	switch header[0] {
	case '3':
		dest := ""
		if len(header) > 3 {
			dest = header[3:]
		}
		dest = resolveRedirect(dest, u.Host, path)
		logger.Warn(fmt.Sprintf("Following redirect to '%s'", dest))
		return Fetch(ctx, dest, maxRedirects-1)

	case '2':
		mimeType, charsetLabel := parseMimeMeta(header)
		if readErr != nil && readErr != io.EOF {
			return "", "", nil, fmt.Errorf("read body: %w", readErr)
		}
		body := rest
		if readErr == nil {
			more, err := io.ReadAll(conn)
			if err != nil {
				return "", "", nil, fmt.Errorf("read body: %w", err)
			}
			body = append(body, more...)
		}
		if strings.HasPrefix(mimeType, "text/") {
			decoded, err := transcode(body, charsetLabel)
			if err != nil {
				return "", "", nil, fmt.Errorf("decode %s body: %w", charsetLabel, err)
			}
			body = decoded
		}
		return reqURL, mimeType, body, nil

	default:
		return "", "", nil, fmt.Errorf("%w: server replied '%s'", ErrBadGeminiStatus, header)
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// Convertible reports whether a fetched document of the given mime
// type can be turned into a polyglot; anything but text/gemini cannot.
func Convertible(mimeType string) error {
	if strings.ToLower(mimeType) == "text/gemini" {
		return nil
	}
	return fmt.Errorf("%w %q", ErrUnsupportedMimeType, mimeType)
}

// resolveRedirect turns a 3X target into an absolute gemini url per
// the forms the protocol allows: absolute, host-relative, path-
// absolute, or relative to the current request.
func resolveRedirect(dest, host, path string) string {
	if du, err := url.Parse(dest); err == nil && du.Scheme != "" {
		return dest
	}
	switch {
	case strings.HasPrefix(dest, "//"):
		return "gemini:" + dest
	case strings.HasPrefix(dest, "/"):
		return "gemini://" + host + dest
	default:
		return "gemini:" + urljoin("//"+host+path, dest)
	}
}

// parseMimeMeta splits "2X mime[;k=v…]", defaulting the charset to
// utf-8.
func parseMimeMeta(header string) (mimeType, charsetLabel string) {
	meta := ""
	if len(header) > 3 {
		meta = header[3:]
	}
	parts := strings.Split(meta, ";")
	mimeType = strings.ToLower(strings.TrimSpace(parts[0]))
	charsetLabel = "utf-8"
	for _, p := range parts[1:] {
		k, v, _ := strings.Cut(strings.TrimSpace(p), "=")
		if strings.ToLower(strings.TrimSpace(k)) == "charset" {
			charsetLabel = strings.TrimSpace(v)
		}
	}
	return mimeType, charsetLabel
}

func transcode(body []byte, label string) ([]byte, error) {
	r, err := charset.NewReaderLabel(label, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
