package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allanpk716/docx-image-replacer/internal/domain"
)

// fakeStream 测试用文本流，breaks 为段落起始位置
type fakeStream struct {
	text   string
	breaks []int
}

func (s fakeStream) Text() string { return s.text }

func (s fakeStream) paragraph(pos int) int {
	p := 0
	for _, b := range s.breaks {
		if pos >= b {
			p++
		}
	}
	return p
}

func (s fakeStream) Contiguous(start, end int) bool {
	return s.paragraph(start) == s.paragraph(end-1)
}

func TestNewTextMatcher(t *testing.T) {
	matcher := NewTextMatcher()
	if matcher == nil {
		t.Fatal("Expected non-nil matcher")
	}
}

func TestTextMatcher_FindFirst(t *testing.T) {
	matcher := NewTextMatcher()

	tests := []struct {
		name      string
		stream    fakeStream
		needle    string
		wantFound bool
		wantStart int
		wantEnd   int
	}{
		{
			name:      "span crossing match",
			stream:    fakeStream{text: "Hello World"},
			needle:    "lo Wo",
			wantFound: true,
			wantStart: 3,
			wantEnd:   8,
		},
		{
			name:      "first of several",
			stream:    fakeStream{text: "#A# and #A#"},
			needle:    "#A#",
			wantFound: true,
			wantStart: 0,
			wantEnd:   3,
		},
		{
			name:   "no match",
			stream: fakeStream{text: "nothing here"},
			needle: "#A#",
		},
		{
			name:   "case sensitive",
			stream: fakeStream{text: "hello"},
			needle: "Hello",
		},
		{
			name:   "empty needle",
			stream: fakeStream{text: "hello"},
			needle: "",
		},
		{
			name:      "cross paragraph candidate skipped",
			stream:    fakeStream{text: "abcabc", breaks: []int{2}},
			needle:    "abc",
			wantFound: true,
			wantStart: 3,
			wantEnd:   6,
		},
		{
			name:      "multibyte text",
			stream:    fakeStream{text: "产品名称：#产品#"},
			needle:    "#产品#",
			wantFound: true,
			wantStart: len("产品名称："),
			wantEnd:   len("产品名称：#产品#"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, found := matcher.FindFirst(tt.stream, tt.needle)
			assert.Equal(t, tt.wantFound, found)
			if tt.wantFound {
				assert.Equal(t, tt.wantStart, match.Start)
				assert.Equal(t, tt.wantEnd, match.End)
				assert.Equal(t, tt.needle, tt.stream.text[match.Start:match.End])
			}
		})
	}
}

func TestTextMatcher_FindAll(t *testing.T) {
	matcher := NewTextMatcher()

	tests := []struct {
		name     string
		text     string
		needle   string
		expected int
	}{
		{name: "single match", text: "Hello #NAME#, welcome!", needle: "#NAME#", expected: 1},
		{name: "duplicate matches", text: "#NAME# and #NAME# again", needle: "#NAME#", expected: 2},
		{name: "overlapping candidates", text: "aaaa", needle: "aa", expected: 2},
		{name: "overlapping odd", text: "aaa", needle: "aa", expected: 1},
		{name: "no matches", text: "This is a normal text", needle: "#NAME#", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := matcher.FindAll(fakeStream{text: tt.text}, tt.needle)
			assert.Len(t, matches, tt.expected)
		})
	}
}

func TestTextMatcher_FindAllNonOverlapping(t *testing.T) {
	matcher := NewTextMatcher()
	streams := []string{"abababab", "aaaaaaa", "xyzxyzxy", "a-b-a-b-a"}
	needles := []string{"a", "ab", "aba", "aa", "xyzx", "-"}

	for _, text := range streams {
		for _, needle := range needles {
			matches := matcher.FindAll(fakeStream{text: text}, needle)
			prevEnd := 0
			prevStart := -1
			for _, m := range matches {
				require.Greater(t, m.Start, prevStart, "matches must be strictly increasing")
				require.GreaterOrEqual(t, m.Start, prevEnd, "matches must not overlap")
				require.Less(t, m.Start, m.End)
				require.Equal(t, needle, text[m.Start:m.End])
				prevStart, prevEnd = m.Start, m.End
			}
		}
	}
}

func TestCountMatches(t *testing.T) {
	assert.Equal(t, 3, CountMatches(fakeStream{text: "x.x.x"}, "x"))
	assert.Equal(t, 0, CountMatches(nil, "x"))
}

func TestKeywordFormat(t *testing.T) {
	assert.True(t, ValidateKeywordFormat("#NAME#"))
	assert.False(t, ValidateKeywordFormat("##"))
	assert.False(t, ValidateKeywordFormat("NAME"))
	assert.Equal(t, "#NAME#", FormatKeyword("NAME"))
	assert.Equal(t, "#NAME#", FormatKeyword("#NAME#"))
}

var _ domain.TextStream = fakeStream{}

// Benchmark tests
func BenchmarkTextMatcher_FindAll(b *testing.B) {
	matcher := NewTextMatcher()
	stream := fakeStream{text: "Hello #NAME#, you are #AGE# years old and live in #CITY#. #NAME# is a great person!"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		matcher.FindAll(stream, "#NAME#")
	}
}
