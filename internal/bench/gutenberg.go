package bench

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// gutenbergSource is the Source header written for prepared books.
const gutenbergSource = "https://www.gutenberg.org/"

var (
	gutenbergStart = []string{
		"*** START OF THE PROJECT GUTENBERG EBOOK",
		"*** START OF THIS PROJECT GUTENBERG EBOOK",
		"*END*THE SMALL PRINT",
	}
	gutenbergEnd = []string{
		"*** END OF THE PROJECT GUTENBERG EBOOK",
		"*** END OF THIS PROJECT GUTENBERG EBOOK",
		"End of Project Gutenberg",
		"End of the Project Gutenberg",
	}

	// Matches "Chapter I", "CHAPTER 1.", "Kapitel 3" and similar.
	chapterRe      = regexp.MustCompile(`(?m)^(Chapter|CHAPTER|Kapitel|KAPITEL)\s+([IVX]+|[0-9]+)[\.\]\s]`)
	romanHeaderRe  = regexp.MustCompile(`^[IVXLC]+\.?$`)
	illustrationRe = regexp.MustCompile(`\[Illustration[^\]]*\]`)
	multiBlankRe   = regexp.MustCompile(`\n{3,}`)
)

// GutenbergHeader reads Title and Author from the preamble of a raw Project
// Gutenberg download.
func GutenbergHeader(raw string) Header {
	h := Header{Source: gutenbergSource}
	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "*** START") {
			break
		}
		if value, ok := strings.CutPrefix(line, "Title:"); ok && h.Title == "" {
			h.Title = strings.TrimSpace(value)
		} else if value, ok := strings.CutPrefix(line, "Author:"); ok && h.Author == "" {
			h.Author = strings.TrimSpace(value)
		}
	}
	return h
}

// ExtractGutenberg returns the book text between the Project Gutenberg
// start and end markers with paragraphs joined onto single lines. When limit
// is positive the body is cut at the first sentence end past limit bytes.
func ExtractGutenberg(raw string, limit int) string {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	for _, marker := range gutenbergStart {
		idx := strings.Index(text, marker)
		if idx == -1 {
			continue
		}
		if eol := strings.Index(text[idx:], "\n"); eol != -1 {
			text = text[idx+eol+1:]
		} else {
			text = ""
		}
		break
	}
	for _, marker := range gutenbergEnd {
		if idx := strings.Index(text, marker); idx != -1 {
			text = text[:idx]
			break
		}
	}

	body := joinParagraphs(text)
	if limit > 0 && len(body) > limit {
		body = cutAtSentence(body, limit)
	}
	return body
}

func joinParagraphs(text string) string {
	// Skip front matter up to the first chapter heading
	if loc := chapterRe.FindStringIndex(text); loc != nil && loc[0] < 50000 {
		text = text[loc[0]:]
	}

	text = illustrationRe.ReplaceAllString(text, "")
	text = multiBlankRe.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)

	var paragraphs []string
	var paragraph strings.Builder
	flush := func() {
		if paragraph.Len() > 0 {
			paragraphs = append(paragraphs, paragraph.String())
			paragraph.Reset()
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \t")

		switch {
		case isChapterHeader(line):
			flush()
			paragraphs = append(paragraphs, line)
		case line == "":
			flush()
		default:
			if paragraph.Len() > 0 {
				paragraph.WriteByte(' ')
			}
			paragraph.WriteString(line)
		}
	}
	flush()

	return strings.Join(paragraphs, "\n\n")
}

func isChapterHeader(line string) bool {
	line = strings.TrimSpace(line)
	if chapterRe.MatchString(line + " ") {
		return true
	}
	return romanHeaderRe.MatchString(line)
}

// cutAtSentence truncates body at the first sentence end at or after limit,
// searching at most 1000 bytes further.
func cutAtSentence(body string, limit int) string {
	for i := limit; i < len(body) && i < limit+1000; i++ {
		switch body[i] {
		case '.', '!', '?':
			if i+1 == len(body) || body[i+1] == ' ' || body[i+1] == '\n' {
				return body[:i+1]
			}
		}
	}
	return body
}

// WriteDocument writes a corpus file: header lines, a blank line, the body.
func WriteDocument(w io.Writer, h Header, body string) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# Source: %s\n", h.Source)
	if h.Title != "" {
		fmt.Fprintf(bw, "# Title: %s\n", h.Title)
	}
	if h.Author != "" {
		fmt.Fprintf(bw, "# Author: %s\n", h.Author)
	}
	fmt.Fprintf(bw, "\n%s\n", body)
	return bw.Flush()
}
