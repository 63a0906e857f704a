// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package gemdoc

// MinimalCSS is always applied: it carries the structural rules the
// translator's output depends on (heading contexts must not break
// across pages, links inherit body styling).
const MinimalCSS = `a {
    color: inherit;
    text-decoration: none;
}
div.headingcontext {
    page-break-inside: avoid;
    page-break-after: avoid;
}
`

// DefaultCSS is the built-in stylesheet, applied only when the caller
// supplies no stylesheets of their own.
const DefaultCSS = `/* Loosely based on the stylesheet behind https://gmi.skyjake.fi/lagrange/ */

/*** Text ***/
html {
    /* Default background and foreground colour */
    background: #fff;
    color: rgb(26, 24, 0);
}
body {
    /* General settings such as the main font to use */
    font-family: Roboto, sans serif;
    font-weight: 400;
    font-size: 15pt;
    line-height: 140%;
    text-align: justify;
}
p {
    /* Settings for paragraphs; i. e. for anything that is not a heading,
       a list, a blockquote, or a block of preformatted text. Note that
       links are also wrapped in 'p' tags, so the settings specified
       here also apply to those if they are not overridden further
       below. */

    /* Note that a single <br /> tag is inserted for every blank line
       in the text/gemini source file. This should be taken into account
       when specifying margins. */
    margin: 0;
}

/*** Links ***/
a > p {
    /* Paragraphs containing links (i. e. a single link per paragraph) */
    margin-left: 20pt;
    text-align: left;
}
a > p > span.label {
    /* Default styling for link labels */
    font-weight: 600;
}
a > p::before {
    content: '🌐︎';
    margin-left: -20pt;
    display: inline-block;
    width: 20pt;
    color: rgb(210, 120, 10);
}
a > p > span.url {
    /* Default styling for printed urls */
    font-weight: 400;
}
/* To display the link and its label on the same line, uncomment the
   line below */
/* a > p > br { display: none; } */

a._internal > p::before {
    /* The _internal class describes links that lead to the same site
    that has been specified as the page footer */
    content: '➤';
}
/* The _nolabel class describes links where no human-readable label is
   provided. In these cases, the content and the href of the a tag are
   the same. In order to not print the same url twice, the automated
   printing of the parenthesized url is disabled for those links. */
a._nolabel > p > br { display: none; }
a._nolabel > p > span.url { display: none; }

a.gemini > p {
    /* Styling for links to gemini:// urls */
}
a.gemini > p::before {
    color: rgb(10, 110, 130);
}
a.gopher > p {
    /* Styling for links to gopher:// urls */
}
a.mailto > p {
    /* Styling for links to mailto: urls */
}
a.mailto > p::before {
    content: '🖂︎';
    color: rgb(10, 110, 130);
}
/* Note that these selectors work for any kind of url scheme. There is no
   need to define special rules for every scheme, though, since the default
   style defined above will be applied to all urls with schemes that aren't
   explicitly mentioned in the css file. */

/*** Headings ***/
h1 {
    font-size: 200%;
    font-weight: 700;
    color: rgb(160, 130, 0);
    line-height: 120%;
    margin-top: 1ex;
    margin-bottom: 1ex;
    text-align: left;
}
h2 {
    font-size: 167%;
    font-weight: 400;
    color: rgb(76, 122, 51);
    line-height: 120%;
    margin-top: 1ex;
    margin-bottom: 1ex;
    text-align: left;
}
h3 {
    font-size: 133%;
    font-weight: 700;
    color: rgb(0, 102, 102);
    margin: 0;
    text-align: left;
}
/* To show the octothorpes in front of headings, uncomment the following
   three lines */
/*
h1::before { content: '# '; }
h2::before { content: '## '; }
h3::before { content: '### '; }
*/

h1.title {
    /* The first heading that serves as a document title */
}
h2.subtitle {
    /* The heading directly beneath the document title that serves as
       the document subtitle */
    color: rgb(160, 130, 0);
}

/*** Lists ***/
ul {
    margin: 0;
    padding-left: 20pt;
    list-style: none;
}
li {
    margin: 0;
}
li::before {
    content: '•';
    color: #008080;
    font-weight: bold;
    display: inline-block;
    width: 16pt;
    margin-left: -16pt;
}

/*** Blockquotes ***/

blockquote {
    color: #008080;
    margin-top: 0;
    margin-bottom: 0;
    margin-left: 2.25em;
    font-style: italic;
    font-weight: 300;
    padding-left: 0.75em;
    border-left: 1px solid #597f7d;
}

/*** Preformatted text ***/

pre {
    font-family: Fira Mono, monospace;
    font-size: 90%;
    line-height: 110%;
    margin: 0;
    color: #008080;
    max-width: 100%;
    overflow: auto;
    page-break-inside: avoid;
}

/*** Colophon with additional information ***/

colophon {
    font-size: 80%;
    line-height: 110%;
    color: #806000;
}

/*** Move the colophon into the page footer ***/

/* Note that a simpler but less customizable example for moving
   the colophon into the page footer is provided below */

colophon > author  { position: running(author);  }
colophon > datesep { position: running(datesep); }
colophon > date    { position: running(date);    }
colophon > urlsep  { position: running(urlsep);  }
colophon > url     { position: running(url);     }
@page:first {
    margin-bottom: 2.5cm;
    @bottom-right {
        content: element(author)
                 element(datesep)   /* The string ', ' if both author
                                       and date are specified. If either
                                       author or date are missing, this
                                       element is missing as well. */
                 element(date)
                 element(urlsep)    /* A single <br /> tag if either author
                                       or date are specified and if the url
                                       is specified as well. If the url is
                                       missing or if both author and date
                                       are missing, this element is missing
                                       as well. */
                 element(url)   ;
    }
}

/* If you want to use the default footer layout, you can also use
   the following code instead of the more involved example provided
   above. Make sure to remove the example above if you uncomment the
   one below. */
/*
colophon {
    position: running(footer);
}
@page:first {
    @bottom-right {
        content: element(footer);
    }
}
*/
`
