// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package gemdoc

import (
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/sassoftware/gemdoc/logger"
)

// terminalPunctuation is the set of title-ending characters that
// suppress the ": " joiner between title and subtitle.
const terminalPunctuation = ".,;:?!"

// Translate converts a text/gemini document into the html shape the
// stylesheet expects and synthesizes the title metadata from the first
// heading. Link lines may be rewritten to their absolute form, so the
// returned gemini text is the exported source to embed, not
// necessarily the input.
func Translate(doc string, meta Metadata) (gemini, htmlDoc string) {
	lines := strings.Split(doc, "\n")
	// A final newline terminates the last line, it does not open an
	// empty one.
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	var body []string
	gotTitle := false
	preformatted := false

	siteHost := hostOf(meta["url"])

	add := func(line, tag, class string) {
		switch {
		case tag != "" && class != "":
			body = append(body, fmt.Sprintf("<%s class=%q>%s</%s>", tag, class, html.EscapeString(line), tag))
		case tag != "":
			body = append(body, fmt.Sprintf("<%s>%s</%s>", tag, html.EscapeString(line), tag))
		default:
			body = append(body, html.EscapeString(line))
		}
	}
	// addEmptyLines appends a <br/> for every blank line following
	// index i and returns the index of the last blank line (or i when
	// none follow).
	addEmptyLines := func(i int) int {
		i++
		for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
			body = append(body, "<br />")
			i++
		}
		return i - 1
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		switch {
		case preformatted && strings.HasPrefix(line, "```"):
			body = append(body, "</pre>")
			preformatted = false
			lines[i] = "```"

		case preformatted:
			add(line, "", "")

		case strings.HasPrefix(line, "```"):
			if i+1 < len(lines) && strings.HasPrefix(lines[i+1], "```") {
				// An immediately closed block renders as nothing.
				i++
			} else {
				body = append(body, "<pre>")
				preformatted = true
			}

		case strings.HasPrefix(line, "###"):
			body = append(body, `<div class="headingcontext">`)
			add(strings.TrimSpace(line[3:]), "h3", "")
			i = addEmptyLines(i)
			body = append(body, "</div>")

		case strings.HasPrefix(line, "##"):
			body = append(body, `<div class="headingcontext">`)
			add(strings.TrimSpace(line[2:]), "h2", "")
			i = addEmptyLines(i)
			body = append(body, "</div>")

		case strings.HasPrefix(line, "#"):
			body = append(body, `<div class="headingcontext">`)
			if !gotTitle {
				gotTitle = true
				title := strings.TrimSpace(line[1:])
				add(title, "h1", "title")
				i = addEmptyLines(i)
				subtitle := ""
				if i+1 < len(lines) && strings.HasPrefix(lines[i+1], "##") && !strings.HasPrefix(lines[i+1], "###") {
					i++
					subtitle = strings.TrimSpace(lines[i][2:])
					add(subtitle, "h2", "subtitle")
				}
				if t := synthesizeTitle(title, subtitle); t != "" {
					meta["title"] = t
				}
				i = addEmptyLines(i)
			} else {
				add(strings.TrimSpace(line[1:]), "h1", "")
				i = addEmptyLines(i)
			}
			body = append(body, "</div>")

		case strings.HasPrefix(line, ">"):
			add(line[1:], "blockquote", "")

		case strings.HasPrefix(line, "* "):
			body = append(body, "<ul>")
			for i < len(lines) && strings.HasPrefix(lines[i], "* ") {
				add(lines[i][2:], "li", "")
				i++
			}
			i--
			body = append(body, "</ul>")

		case strings.HasPrefix(line, "=>"):
			lines[i] = translateLink(line, meta, siteHost, &body)

		case strings.TrimSpace(line) == "":
			body = append(body, "<br />")

		default:
			add(line, "p", "")
		}
	}

	htmlDoc = "<html><head>\n" +
		"<colophon>" + colophon(meta) + "</colophon>\n" +
		"</head><body>\n" +
		strings.Join(body, "\n") + "\n" +
		"</body></html>"
	return strings.Join(lines, "\n"), htmlDoc
}

// synthesizeTitle joins title and subtitle with ": " unless the title
// already ends in terminal punctuation, then forces the result to
// ascii.
func synthesizeTitle(title, subtitle string) string {
	var t string
	switch {
	case title != "" && subtitle != "" && strings.ContainsRune(terminalPunctuation, rune(title[len(title)-1])):
		t = title + " " + subtitle
	case title != "" && subtitle != "":
		t = title + ": " + subtitle
	case title != "":
		t = title
	default:
		return ""
	}
	clean, changed := asciiClean(t)
	if changed {
		logger.Warn(fmt.Sprintf("Replaced non-ASCII characters in title %q with '_'", t))
	}
	return clean
}

// translateLink renders a "=> LINK LABEL" line and returns the
// (possibly rewritten) source line carrying the absolute link.
func translateLink(line string, meta Metadata, siteHost string, body *[]string) string {
	rest := strings.TrimLeft(line[2:], " \t")
	link := rest
	label := ""
	if i := strings.IndexAny(rest, " \t"); i >= 0 {
		link = rest[:i]
		label = strings.TrimLeft(rest[i:], " \t")
	}

	rewrite := func() string {
		if label != "" {
			return "=> " + link + " " + label
		}
		return "=> " + link
	}

	out := line
	_, hasBase := meta["url"]
	if !hasBase && strings.HasPrefix(link, "//") {
		link = "gemini:" + link
		out = rewrite()
	}
	scheme := schemeOf(link)
	if hasBase && scheme == "" {
		base := meta["url"]
		if strings.HasPrefix(base, "gemini://") {
			// Work around missing IANA registration of gemini://
			link = "gemini:" + urljoin(base[len("gemini:"):], link)
		} else {
			link = urljoin(base, link)
		}
		scheme = schemeOf(link)
		out = rewrite()
	}

	class := scheme
	if hostOf(link) == siteHost {
		if class != "" {
			class += " "
		}
		class += "_internal"
	}
	if label == "" {
		label = link
		if class != "" {
			class += " "
		}
		class += "_nolabel"
	}
	*body = append(*body, fmt.Sprintf(
		`<a href="%s" class="%s"><p><span class="label">%s</span> <br /><span class="url">%s</span></p></a>`,
		link, class, html.EscapeString(label), html.EscapeString(link)))
	return out
}

func colophon(meta Metadata) string {
	var c strings.Builder
	if a := meta["author"]; a != "" {
		c.WriteString("<author>" + html.EscapeString(a) + "</author>")
	}
	if d := meta["date"]; d != "" {
		if c.Len() > 0 {
			c.WriteString("<datesep>, </datesep>")
		}
		c.WriteString("<date>" + html.EscapeString(d) + "</date>")
	}
	if u := meta["url"]; u != "" {
		if c.Len() > 0 {
			c.WriteString("<urlsep><br /></urlsep>")
		}
		c.WriteString("<url><a href=" + u + ">" + html.EscapeString(u) + "</a></url>")
	}
	return c.String()
}

func schemeOf(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return u.Scheme
}

func hostOf(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return u.Host
}

// urljoin resolves ref against base the way a browser would, keeping
// scheme-relative bases intact.
func urljoin(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
