// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package gemdoc

import (
	"bufio"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// geminiResponse is one canned exchange: the status line (without
// CRLF) and an optional body.
type geminiResponse struct {
	status string
	body   []byte
}

// startGeminiServer runs a TLS listener with a throwaway self-signed
// certificate, answering one connection per queued response. It
// returns the listener address and a channel of the request lines it
// received.
func startGeminiServer(t *testing.T, responses ...geminiResponse) (string, <-chan string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "127.0.0.1"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert := tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}

	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{Certificates: []tls.Certificate{cert}})
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	requests := make(chan string, len(responses))
	go func() {
		for _, resp := range responses {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			line, err := bufio.NewReader(conn).ReadString('\n')
			if err == nil {
				requests <- strings.TrimRight(line, "\r\n")
			}
			conn.Write([]byte(resp.status + "\r\n"))
			if resp.body != nil {
				conn.Write(resp.body)
			}
			conn.Close()
		}
	}()
	return ln.Addr().String(), requests
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestFetch_Success(t *testing.T) {
	addr, requests := startGeminiServer(t,
		geminiResponse{status: "20 text/gemini", body: []byte("# hi\n")})

	finalURL, mimeType, body, err := Fetch(testCtx(t), "gemini://"+addr+"/doc.gmi", 5)
	require.NoError(t, err)
	assert.Equal(t, "gemini://"+addr+"/doc.gmi", finalURL)
	assert.Equal(t, "text/gemini", mimeType)
	assert.Equal(t, "# hi\n", string(body))
	assert.Equal(t, "gemini://"+addr+"/doc.gmi", <-requests)
}

func TestFetch_DefaultsPathToRoot(t *testing.T) {
	addr, requests := startGeminiServer(t,
		geminiResponse{status: "20 text/gemini", body: []byte("ok")})

	_, _, _, err := Fetch(testCtx(t), "gemini://"+addr, 5)
	require.NoError(t, err)
	assert.Equal(t, "gemini://"+addr+"/", <-requests)
}

func TestFetch_CharsetTranscoding(t *testing.T) {
	addr, _ := startGeminiServer(t,
		geminiResponse{status: "20 text/plain; charset=iso-8859-1", body: []byte{0xe9}})

	_, mimeType, body, err := Fetch(testCtx(t), "gemini://"+addr+"/x", 5)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", mimeType)
	assert.Equal(t, "é", string(body))
}

func TestFetch_BinaryBodyUntouched(t *testing.T) {
	raw := []byte{0x00, 0xff, 0x10}
	addr, _ := startGeminiServer(t,
		geminiResponse{status: "20 application/octet-stream", body: raw})

	_, mimeType, body, err := Fetch(testCtx(t), "gemini://"+addr+"/x", 5)
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", mimeType)
	assert.Equal(t, raw, body)
}

func TestFetch_AbsoluteRedirect(t *testing.T) {
	// Second listener serves the destination; the first only
	// redirects.
	destAddr, destRequests := startGeminiServer(t,
		geminiResponse{status: "20 text/gemini", body: []byte("moved")})
	srcAddr, _ := startGeminiServer(t,
		geminiResponse{status: "30 gemini://" + destAddr + "/other.gmi"})

	finalURL, _, body, err := Fetch(testCtx(t), "gemini://"+srcAddr+"/doc.gmi", 5)
	require.NoError(t, err)
	assert.Equal(t, "gemini://"+destAddr+"/other.gmi", finalURL)
	assert.Equal(t, "moved", string(body))
	assert.Equal(t, "gemini://"+destAddr+"/other.gmi", <-destRequests)
}

func TestFetch_TooManyRedirects(t *testing.T) {
	// Every hop redirects to the next listener in the chain; the
	// client must give up after its redirect budget is spent.
	last, _ := startGeminiServer(t, geminiResponse{status: "20 text/gemini", body: []byte("end")})
	addr := last
	for i := 0; i < 3; i++ {
		addr, _ = startGeminiServer(t, geminiResponse{status: "30 gemini://" + addr + "/next"})
	}

	_, _, _, err := Fetch(testCtx(t), "gemini://"+addr+"/start", 2)
	assert.ErrorIs(t, err, ErrTooManyRedirects)
}

func TestFetch_BadStatus(t *testing.T) {
	addr, _ := startGeminiServer(t, geminiResponse{status: "51 not found"})
	_, _, _, err := Fetch(testCtx(t), "gemini://"+addr+"/x", 5)
	assert.ErrorIs(t, err, ErrBadGeminiStatus)
}

func TestFetch_NonNumericStatus(t *testing.T) {
	addr, _ := startGeminiServer(t, geminiResponse{status: "xx whatever"})
	_, _, _, err := Fetch(testCtx(t), "gemini://"+addr+"/x", 5)
	assert.ErrorIs(t, err, ErrBadGeminiStatus)
}

func TestFetch_MissingStatusLine(t *testing.T) {
	long := strings.Repeat("a", 2000)
	addr, _ := startGeminiServer(t, geminiResponse{status: long})
	// The CRLF arrives after the 1029-byte window, so the client must
	// reject the response.
	_, _, _, err := Fetch(testCtx(t), "gemini://"+addr+"/x", 5)
	assert.ErrorIs(t, err, ErrBadGeminiStatus)
}

func TestFetch_UnsupportedScheme(t *testing.T) {
	_, _, _, err := Fetch(testCtx(t), "https://example.org/", 5)
	assert.ErrorIs(t, err, ErrUnsupportedURLScheme)
}

func TestFetch_NewlinesEscapedInRequest(t *testing.T) {
	addr, requests := startGeminiServer(t,
		geminiResponse{status: "20 text/gemini", body: []byte("ok")})

	_, _, _, err := Fetch(testCtx(t), "gemini://"+addr+"/a\nb", 5)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("gemini://%s/a%%0Ab", addr), <-requests)
}

func TestConvertible(t *testing.T) {
	assert.NoError(t, Convertible("text/gemini"))
	assert.NoError(t, Convertible("TEXT/GEMINI"))
	assert.ErrorIs(t, Convertible("text/plain"), ErrUnsupportedMimeType)
	assert.ErrorIs(t, Convertible("application/pdf"), ErrUnsupportedMimeType)
}

func TestResolveRedirect(t *testing.T) {
	cases := []struct {
		dest, host, path, want string
	}{
		{"gemini://x/y", "h", "/p", "gemini://x/y"},
		{"//x/y", "h", "/p", "gemini://x/y"},
		{"/y", "h", "/a/b", "gemini://h/y"},
		{"y", "h", "/a/b", "gemini://h/a/y"},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, resolveRedirect(c.dest, c.host, c.path), "dest %q", c.dest)
	}
}
