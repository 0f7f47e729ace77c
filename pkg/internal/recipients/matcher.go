package recipients

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultThreshold 姓名匹配的最低相似度.
const DefaultThreshold = 0.6

// Matcher 姓名相似度策略，返回 [0,1].
type Matcher interface {
	Similarity(a, b string) float64
}

// NameMatcher 折叠重音与大小写后按编辑距离归一化：1 - dist/max(len).
type NameMatcher struct{}

func (NameMatcher) Similarity(a, b string) float64 {
	a, b = Fold(a), Fold(b)
	if a == "" || b == "" {
		return 0
	}

	if a == b {
		return 1
	}

	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))

	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// Fold 去重音、转小写并合并空白.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}
