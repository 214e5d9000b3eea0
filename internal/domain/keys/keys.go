package keys

import (
	"strings"

	"github.com/ssh352/nexus/internal/domain/value"
)

// Delimiter separates the parts of a generated key
const Delimiter = '|'

// Generator maps the ordered index-column values of a row to its row key.
// Implementations must be pure: equal inputs always yield equal keys.
type Generator interface {
	Generate(values []value.Value) string
}

// GeneratorFunc adapts a plain function to Generator
type GeneratorFunc func(values []value.Value) string

func (f GeneratorFunc) Generate(values []value.Value) string { return f(values) }

// ArrayStringKeyGenerator joins the canonical text of each value with
// Delimiter, escaping backslashes and delimiters inside each part so that
// distinct sequences never collide.
type ArrayStringKeyGenerator struct{}

func (ArrayStringKeyGenerator) Generate(values []value.Value) string {
	var b strings.Builder
	for i, v := range values {
		if i > 0 {
			b.WriteByte(Delimiter)
		}
		writeEscaped(&b, v.KeyText())
	}
	return b.String()
}

func writeEscaped(b *strings.Builder, s string) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' || c == Delimiter {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
}

// Default is the generator used when none is configured
var Default Generator = ArrayStringKeyGenerator{}
