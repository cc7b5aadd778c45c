package book

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// SupportedMdBookVersion is the mdBook release the preprocessor protocol was
// written against. Callers with another minor version get a warning.
const SupportedMdBookVersion = "0.4.40"

// PreprocessorName is reported in warnings.
const PreprocessorName = "bookindex-preprocessor"

var (
	ruleRe       = regexp.MustCompile(`(?m)^r\[([^\]]+)\]$`)
	admonitionRe = regexp.MustCompile(`(?m)^ *> \[!(?P<admon>[^\]]+)\]\n(?P<blockquote>(?: *> .*\n)+)`)
)

const ruleTemplate = `<div class="rule" id="${1}"><a class="rule-link" href="#${1}">[${1}]</a></div>` + "\n"

// Preprocess rewrites rule markers and GitHub-style admonitions into HTML:
//
//	r[array.type]       -> <div class="rule" id="array.type">...</div>
//	> [!NOTE]\n> text   -> <div class="note">\n\n> text\n\n\n</div>
func Preprocess(content string) string {
	content = ruleRe.ReplaceAllString(content, ruleTemplate)
	admon := admonitionRe.SubexpIndex("admon")
	quote := admonitionRe.SubexpIndex("blockquote")
	return admonitionRe.ReplaceAllStringFunc(content, func(match string) string {
		m := admonitionRe.FindStringSubmatch(match)
		if m == nil {
			return match
		}
		return fmt.Sprintf("<div class=\"%s\">\n\n%s\n\n</div>\n", strings.ToLower(m[admon]), m[quote])
	})
}

// PreprocessBook rewrites every chapter of b in place.
func PreprocessBook(b *Book) {
	b.Walk(func(ch *Chapter) {
		ch.Content = Preprocess(ch.Content)
	})
}

// SupportsRenderer reports whether the preprocessor handles a renderer.
// It handles all of them.
func SupportsRenderer(string) bool {
	return true
}

type preprocessorContext struct {
	Root          string `json:"root"`
	Renderer      string `json:"renderer"`
	MdbookVersion string `json:"mdbook_version"`
}

// RunPreprocessor implements the mdBook preprocessor protocol: it reads the
// JSON array [context, book] from r, rewrites every chapter's content and
// writes the book back to w. Fields it does not know are passed through.
func RunPreprocessor(r io.Reader, w io.Writer) error {
	logger := slog.Default().With("component", "preprocessor")

	var input []json.RawMessage
	if err := json.NewDecoder(r).Decode(&input); err != nil {
		return fmt.Errorf("decoding preprocessor input: %w", err)
	}
	if len(input) != 2 {
		return fmt.Errorf("preprocessor input must be [context, book], got %d elements", len(input))
	}
	var ctx preprocessorContext
	if err := json.Unmarshal(input[0], &ctx); err != nil {
		return fmt.Errorf("decoding preprocessor context: %w", err)
	}
	if err := checkVersion(ctx.MdbookVersion); err != nil {
		return err
	}
	if !compatibleVersion(ctx.MdbookVersion) {
		logger.Warn("preprocessor built for a different mdbook version",
			"preprocessor", PreprocessorName,
			"supported", SupportedMdBookVersion,
			"called_from", ctx.MdbookVersion,
		)
	}

	dec := json.NewDecoder(bytes.NewReader(input[1]))
	dec.UseNumber()
	var bookData map[string]any
	if err := dec.Decode(&bookData); err != nil {
		return fmt.Errorf("decoding book: %w", err)
	}
	chapters := 0
	for _, key := range []string{"sections", "items"} {
		if items, ok := bookData[key].([]any); ok {
			chapters += rewriteItems(items)
		}
	}
	logger.Debug("book preprocessed", "renderer", ctx.Renderer, "chapters", chapters)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(bookData); err != nil {
		return fmt.Errorf("encoding book: %w", err)
	}
	return nil
}

func rewriteItems(items []any) int {
	count := 0
	for _, item := range items {
		wrapper, ok := item.(map[string]any)
		if !ok {
			continue
		}
		ch, ok := wrapper["Chapter"].(map[string]any)
		if !ok {
			continue
		}
		if content, ok := ch["content"].(string); ok {
			ch["content"] = Preprocess(content)
			count++
		}
		if sub, ok := ch["sub_items"].([]any); ok {
			count += rewriteItems(sub)
		}
	}
	return count
}

func checkVersion(version string) error {
	if !semver.IsValid("v" + version) {
		return fmt.Errorf("invalid mdbook_version %q", version)
	}
	return nil
}

// compatibleVersion matches ^SupportedMdBookVersion: same major and minor,
// not older.
func compatibleVersion(version string) bool {
	v, supported := "v"+version, "v"+SupportedMdBookVersion
	return semver.MajorMinor(v) == semver.MajorMinor(supported) && semver.Compare(v, supported) >= 0
}
