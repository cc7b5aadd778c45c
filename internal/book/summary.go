// Package book loads a markdown book from its source directory, applies the
// rule/admonition preprocessor and splits chapters into searchable sections.
package book

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/bookindex/pkg/errors"
)

// SummaryFile lists the chapters of a book in reading order.
const SummaryFile = "SUMMARY.md"

// Chapter is one page of the book. Draft chapters have no path and no
// content.
type Chapter struct {
	Name        string
	Path        string
	Content     string
	ParentNames []string
	Number      []int
	Part        string
	SubItems    []*Chapter
}

func (c *Chapter) IsDraft() bool {
	return c.Path == ""
}

// SectionNumber renders Number as "1.2.", or "" for unnumbered chapters.
func (c *Chapter) SectionNumber() string {
	if len(c.Number) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, n := range c.Number {
		fmt.Fprintf(&sb, "%d.", n)
	}
	return sb.String()
}

// Book is the loaded source tree.
type Book struct {
	Title    string
	SrcDir   string
	Chapters []*Chapter
}

// Walk visits every chapter depth-first in reading order.
func (b *Book) Walk(fn func(*Chapter)) {
	var visit func([]*Chapter)
	visit = func(items []*Chapter) {
		for _, ch := range items {
			fn(ch)
			visit(ch.SubItems)
		}
	}
	visit(b.Chapters)
}

// Pages returns the non-draft chapters in reading order.
func (b *Book) Pages() []*Chapter {
	var out []*Chapter
	b.Walk(func(ch *Chapter) {
		if !ch.IsDraft() {
			out = append(out, ch)
		}
	})
	return out
}

var (
	titleLine    = regexp.MustCompile(`^#\s+(.+?)\s*$`)
	listItemLine = regexp.MustCompile(`^(\s*)[-*]\s+\[([^\]]+)\]\(([^)]*)\)\s*$`)
	linkLine     = regexp.MustCompile(`^\[([^\]]+)\]\(([^)]*)\)\s*$`)
	separator    = regexp.MustCompile(`^-{3,}\s*$`)
)

// LoadSummary reads srcDir/SUMMARY.md and the chapter files it links. When
// the summary is missing every markdown file under srcDir becomes a
// top-level chapter, in path order.
func LoadSummary(srcDir string) (*Book, error) {
	info, err := os.Stat(srcDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrBookNotFound, srcDir)
	}
	data, err := os.ReadFile(filepath.Join(srcDir, SummaryFile))
	if os.IsNotExist(err) {
		return loadFlat(srcDir)
	}
	if err != nil {
		return nil, fmt.Errorf("reading summary: %w", err)
	}
	b, err := ParseSummary(data)
	if err != nil {
		return nil, err
	}
	b.SrcDir = srcDir
	var loadErr error
	b.Walk(func(ch *Chapter) {
		if loadErr != nil || ch.IsDraft() {
			return
		}
		content, err := os.ReadFile(filepath.Join(srcDir, filepath.FromSlash(ch.Path)))
		if err != nil {
			loadErr = fmt.Errorf("loading chapter %q: %w", ch.Name, err)
			return
		}
		ch.Content = string(content)
	})
	if loadErr != nil {
		return nil, loadErr
	}
	return b, nil
}

// ParseSummary builds the chapter tree from SUMMARY.md without reading any
// chapter file. Links before the first list item are prefix chapters, links
// after the list are suffix chapters; neither is numbered.
func ParseSummary(data []byte) (*Book, error) {
	b := &Book{}
	type frame struct {
		indent int
		ch     *Chapter
	}
	var (
		stack    []frame
		part     string
		topCount int
		lineNo   int
	)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if strings.TrimSpace(line) == "" || separator.MatchString(line) {
			continue
		}
		if m := titleLine.FindStringSubmatch(line); m != nil {
			if b.Title == "" && len(b.Chapters) == 0 {
				b.Title = m[1]
			} else {
				part = m[1]
			}
			stack = stack[:0]
			continue
		}
		if m := listItemLine.FindStringSubmatch(line); m != nil {
			indent := len(strings.ReplaceAll(m[1], "\t", "    "))
			for len(stack) > 0 && stack[len(stack)-1].indent >= indent {
				stack = stack[:len(stack)-1]
			}
			ch := &Chapter{Name: m[2], Path: m[3], Part: part}
			if len(stack) == 0 {
				topCount++
				ch.Number = []int{topCount}
				b.Chapters = append(b.Chapters, ch)
			} else {
				parent := stack[len(stack)-1].ch
				ch.ParentNames = append(append([]string(nil), parent.ParentNames...), parent.Name)
				ch.Number = append(append([]int(nil), parent.Number...), len(parent.SubItems)+1)
				parent.SubItems = append(parent.SubItems, ch)
			}
			stack = append(stack, frame{indent: indent, ch: ch})
			continue
		}
		if m := linkLine.FindStringSubmatch(line); m != nil {
			b.Chapters = append(b.Chapters, &Chapter{Name: m[1], Path: m[2], Part: part})
			continue
		}
		return nil, fmt.Errorf("%w: SUMMARY.md line %d: unrecognised entry %q", apperrors.ErrInvalidInput, lineNo, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning summary: %w", err)
	}
	return b, nil
}

func loadFlat(srcDir string) (*Book, error) {
	var paths []string
	err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".md") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", srcDir, err)
	}
	sort.Strings(paths)
	b := &Book{SrcDir: srcDir}
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", p, err)
		}
		rel, _ := filepath.Rel(srcDir, p)
		rel = filepath.ToSlash(rel)
		b.Chapters = append(b.Chapters, &Chapter{
			Name:    firstHeading(string(content), strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))),
			Path:    rel,
			Content: string(content),
		})
	}
	return b, nil
}

func firstHeading(content, fallback string) string {
	for _, line := range strings.Split(content, "\n") {
		if m := titleLine.FindStringSubmatch(strings.TrimRight(line, "\r")); m != nil {
			return m[1]
		}
	}
	return fallback
}
