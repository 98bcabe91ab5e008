package finder

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// ignoreMarker suppresses findings for the line it appears on when placed
// in a trailing or standalone comment:
//
//	query = "SELEC * FROM users"  # sqlscout: ignore
const ignoreMarker = "sqlscout:"

// preanalysis is the per-file position index: byte offsets of line starts
// for offset-to-line/column mapping, plus the set of lines carrying an
// ignore pragma.
type preanalysis struct {
	lineStarts []int
	ignored    map[int]bool
}

func preanalyze(src []byte) *preanalysis {
	pre := &preanalysis{
		lineStarts: []int{0},
		ignored:    make(map[int]bool),
	}
	for i, b := range src {
		if b == '\n' {
			pre.lineStarts = append(pre.lineStarts, i+1)
		}
	}
	for line := 1; line <= len(pre.lineStarts); line++ {
		if lineHasIgnorePragma(pre.lineText(src, line)) {
			pre.ignored[line] = true
		}
	}
	return pre
}

func (p *preanalysis) lineText(src []byte, line int) string {
	start := p.lineStarts[line-1]
	end := len(src)
	if line < len(p.lineStarts) {
		end = p.lineStarts[line] - 1
	}
	return string(src[start:end])
}

// lineHasIgnorePragma looks for the marker inside a comment. Only text
// after a '#' counts, so string contents cannot trigger it by accident
// unless they also share the line with a comment.
func lineHasIgnorePragma(line string) bool {
	hash := strings.IndexByte(line, '#')
	if hash < 0 {
		return false
	}
	comment := line[hash+1:]
	idx := strings.Index(comment, ignoreMarker)
	if idx < 0 {
		return false
	}
	rest := strings.TrimSpace(comment[idx+len(ignoreMarker):])
	return strings.HasPrefix(rest, "ignore")
}

// lineCol maps a byte offset to a 1-based line and rune column.
func (p *preanalysis) lineCol(src []byte, offset int) (int, int) {
	line := sort.Search(len(p.lineStarts), func(i int) bool {
		return p.lineStarts[i] > offset
	})
	start := p.lineStarts[line-1]
	if offset > len(src) {
		offset = len(src)
	}
	col := utf8.RuneCount(src[start:offset]) + 1
	return line, col
}

func (p *preanalysis) isIgnored(src []byte, offset int) bool {
	line, _ := p.lineCol(src, offset)
	return p.ignored[line]
}
