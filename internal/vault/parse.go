package vault

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

var (
	wikiLinkRe    = regexp.MustCompile(`\[\[([^\[\]|#]+)(?:#[^\[\]|]*)?(?:\|[^\[\]]*)?\]\]`)
	inlineTagRe   = regexp.MustCompile(`(?:^|\s)#([A-Za-z][\w/-]*)`)
	frontMatterRe = regexp.MustCompile(`(?s)\A---\r?\n(.*?)\r?\n---(?:\r?\n|\z)`)
)

// Links returns the targets of every wiki-link in text, in order and with
// duplicates kept. Aliases ([[Target|alias]]) and heading anchors
// ([[Target#heading]]) are stripped.
func Links(text string) []string {
	var out []string
	for _, m := range wikiLinkRe.FindAllStringSubmatch(text, -1) {
		if t := strings.TrimSpace(m[1]); t != "" {
			out = append(out, t)
		}
	}
	return out
}

type frontMatter struct {
	Tags any `yaml:"tags"`
}

// splitFrontMatter returns the parsed front matter block (if any) and the
// body that follows it.
func splitFrontMatter(src string) (*frontMatter, string) {
	loc := frontMatterRe.FindStringSubmatchIndex(src)
	if loc == nil {
		return nil, src
	}
	var fm frontMatter
	if err := yaml.Unmarshal([]byte(src[loc[2]:loc[3]]), &fm); err != nil {
		return nil, src[loc[1]:]
	}
	return &fm, src[loc[1]:]
}

// Tags returns the note's tags without the leading '#': front matter
// "tags:" (list or comma/space separated string) first, then inline #tags.
// Duplicates are dropped.
func Tags(src string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(t string) {
		t = strings.TrimPrefix(strings.TrimSpace(t), "#")
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		out = append(out, t)
	}

	fm, body := splitFrontMatter(src)
	if fm != nil {
		switch v := fm.Tags.(type) {
		case []any:
			for _, t := range v {
				if s, ok := t.(string); ok {
					add(s)
				}
			}
		case string:
			for _, t := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
				add(t)
			}
		}
	}
	for _, m := range inlineTagRe.FindAllStringSubmatch(stripCode(body), -1) {
		add(m[1])
	}
	return out
}

// stripCode blanks fenced code so '#' inside code is not read as a tag.
func stripCode(src string) string {
	var sb strings.Builder
	fenced := false
	for _, line := range strings.SplitAfter(src, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			fenced = !fenced
			sb.WriteString("\n")
			continue
		}
		if fenced {
			sb.WriteString("\n")
			continue
		}
		sb.WriteString(line)
	}
	return sb.String()
}

// PGNBlocks returns the contents of every fenced code block whose info
// string is "pgn".
func PGNBlocks(src string) []string {
	source := []byte(src)
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var out []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		block, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		if !strings.EqualFold(string(block.Language(source)), "pgn") {
			return ast.WalkSkipChildren, nil
		}
		var sb strings.Builder
		lines := block.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			sb.Write(seg.Value(source))
		}
		out = append(out, strings.TrimRight(sb.String(), "\n"))
		return ast.WalkSkipChildren, nil
	})
	return out
}
