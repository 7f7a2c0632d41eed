// Package textdiff aligns two text streams at token granularity and
// classifies each span as added, removed or unchanged.
package textdiff

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/batflow/batverify/internal/models"
)

var (
	spacesRe    = regexp.MustCompile(`[^\S\n]+`)
	lineEdgesRe = regexp.MustCompile(` *\n *`)
	blankRunsRe = regexp.MustCompile(`\n{3,}`)
)

// Normalize cleans extracted page text before diffing: runs of non-newline
// whitespace collapse to a single space, line edges are trimmed, three or
// more consecutive blank lines collapse to exactly one, and the whole text
// is trimmed. Normalize is idempotent.
func Normalize(text string) string {
	text = spacesRe.ReplaceAllString(text, " ")
	text = lineEdgesRe.ReplaceAllString(text, "\n")
	text = blankRunsRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// ComparePage diffs one page pair at token level. A missing page on either
// side is passed as the empty string and yields an all-added or all-removed
// page.
func ComparePage(pageNumber int, refText, candText string) models.TextDiffPage {
	ref := Normalize(refText)
	cand := Normalize(candText)
	return models.TextDiffPage{
		PageNumber:    pageNumber,
		ReferenceText: ref,
		NewText:       cand,
		Changes:       diffTokens(ref, cand),
	}
}

// Aggregate assembles the document-level result. TotalChanges is the count
// of non-unchanged spans across all pages.
func Aggregate(pages []models.TextDiffPage) models.TextDiffResult {
	res := models.TextDiffResult{Pages: pages}
	for _, p := range pages {
		for _, c := range p.Changes {
			if c.Type != models.ChangeUnchanged {
				res.TotalChanges++
			}
		}
	}
	return res
}

// diffTokens runs a minimal LCS-based diff over the token sequences of both
// texts. Each token is mapped to a unique rune so the diff engine aligns
// whole tokens; ambiguous alignments resolve leftmost-greedy. Spans of the
// same type are coalesced so the script stays readable.
func diffTokens(ref, cand string) []models.TextChange {
	if ref == "" && cand == "" {
		return nil
	}

	index := map[string]rune{}
	r1 := tokensToRunes(tokenize(ref), index)
	r2 := tokensToRunes(tokenize(cand), index)

	tokens := make([]string, len(index)+1)
	for tok, r := range index {
		tokens[runeToIndex(r)] = tok
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMainRunes(r1, r2, false)

	var changes []models.TextChange
	for _, d := range diffs {
		var sb strings.Builder
		for _, r := range d.Text {
			sb.WriteString(tokens[runeToIndex(r)])
		}
		value := sb.String()
		if value == "" {
			continue
		}
		typ := changeType(d.Type)
		if n := len(changes); n > 0 && changes[n-1].Type == typ {
			changes[n-1].Value += value
			continue
		}
		changes = append(changes, models.TextChange{Type: typ, Value: value})
	}
	return changes
}

func changeType(op diffmatchpatch.Operation) models.ChangeType {
	switch op {
	case diffmatchpatch.DiffInsert:
		return models.ChangeAdded
	case diffmatchpatch.DiffDelete:
		return models.ChangeRemoved
	default:
		return models.ChangeUnchanged
	}
}

// tokenize splits text into maximal runs of letters, digits, whitespace or
// other characters. Splitting digit runs from letter runs keeps diffs of
// unit-bearing words ("240ml" vs "250ml") anchored at the number.
// Concatenating the tokens reproduces the input exactly.
func tokenize(text string) []string {
	var tokens []string
	runes := []rune(text)
	start := 0
	for i := 1; i <= len(runes); i++ {
		if i == len(runes) || charClass(runes[i]) != charClass(runes[start]) {
			tokens = append(tokens, string(runes[start:i]))
			start = i
		}
	}
	return tokens
}

func charClass(r rune) int {
	switch {
	case unicode.IsSpace(r):
		return 0
	case unicode.IsLetter(r):
		return 1
	case unicode.IsDigit(r):
		return 2
	default:
		return 3
	}
}

// tokensToRunes interns each token as a rune, sharing the index across both
// sequences so equal tokens compare equal.
func tokensToRunes(tokens []string, index map[string]rune) []rune {
	out := make([]rune, 0, len(tokens))
	for _, tok := range tokens {
		r, ok := index[tok]
		if !ok {
			r = indexToRune(len(index) + 1)
			index[tok] = r
		}
		out = append(out, r)
	}
	return out
}

// Token indices skip the UTF-16 surrogate block, which cannot round-trip
// through Go strings.
const (
	surrogateMin = 0xD800
	surrogateMax = 0xDFFF
)

func indexToRune(i int) rune {
	if i >= surrogateMin {
		i += surrogateMax - surrogateMin + 1
	}
	return rune(i)
}

func runeToIndex(r rune) int {
	i := int(r)
	if i > surrogateMax {
		i -= surrogateMax - surrogateMin + 1
	}
	return i
}
