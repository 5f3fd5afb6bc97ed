package walk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIgnoreLine(t *testing.T) {
	tests := []struct {
		line string
		ok   bool
		want ignoreRule
	}{
		{"", false, ignoreRule{}},
		{"# comment", false, ignoreRule{}},
		{"*.log", true, ignoreRule{Pattern: "*.log"}},
		{"!keep.log", true, ignoreRule{Pattern: "keep.log", Negate: true}},
		{"build/", true, ignoreRule{Pattern: "build", Directory: true}},
		{"/dist", true, ignoreRule{Pattern: "dist", Anchored: true}},
		{"docs/*.md", true, ignoreRule{Pattern: "docs/*.md", Anchored: true}},
		{`\#literal`, true, ignoreRule{Pattern: "#literal"}},
		{"trailing   ", true, ignoreRule{Pattern: "trailing"}},
		{"/", false, ignoreRule{}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			rule, ok := parseIgnoreLine(tt.line)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, rule)
			}
		})
	}
}

func TestIgnoreRuleMatches(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		path    string
		isDir   bool
		want    bool
	}{
		{"basename anywhere", "*.min.js", "web/bundle.min.js", false, true},
		{"basename miss", "*.min.js", "web/bundle.js", false, false},
		{"directory rule on dir", "node_modules/", "a/node_modules", true, true},
		{"directory rule skips files", "node_modules/", "node_modules", false, false},
		{"anchored root", "/build", "build", true, true},
		{"anchored not nested", "/build", "src/build", true, false},
		{"inner slash anchors", "docs/*.md", "docs/a.md", false, true},
		{"inner slash nested miss", "docs/*.md", "x/docs/a.md", false, false},
		{"double star prefix", "**/tmp", "a/b/tmp", true, true},
		{"double star middle", "a/**/z.txt", "a/b/c/z.txt", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, ok := parseIgnoreLine(tt.pattern)
			assert.True(t, ok)
			assert.Equal(t, tt.want, rule.matches(tt.path, tt.isDir))
		})
	}
}

func TestIgnoreStackLastMatchWins(t *testing.T) {
	parse := func(lines ...string) []ignoreRule {
		var rules []ignoreRule
		for _, l := range lines {
			r, _ := parseIgnoreLine(l)
			rules = append(rules, r)
		}
		return rules
	}
	stack := ignoreStack{
		{base: "", rules: parse("*.log")},
		{base: "keep", rules: parse("!important.log")},
	}

	assert.True(t, stack.ignored("a.log", false))
	assert.True(t, stack.ignored("other/important.log", false))
	assert.False(t, stack.ignored("keep/important.log", false))
	assert.True(t, stack.ignored("keep/debug.log", false))
	assert.False(t, stack.ignored("keep/main.go", false))
}

func TestBinaryDetector(t *testing.T) {
	bd := NewBinaryDetector()

	assert.True(t, bd.IsBinaryByExtension("photo.JPG"))
	assert.False(t, bd.IsBinaryByExtension("icon.svg"))
	assert.False(t, bd.IsBinaryByExtension("Makefile"))

	assert.False(t, bd.IsBinaryContent(nil))
	assert.False(t, bd.IsBinaryContent([]byte("plain text\nwith lines\n")))
	assert.False(t, bd.IsBinaryContent([]byte("utf-8 caf\xc3\xa9\n")))
	assert.True(t, bd.IsBinaryContent([]byte("a\x00b")))
	assert.True(t, bd.IsBinaryContent([]byte{0x1F, 0x8B, 0x08}))
	assert.True(t, bd.IsBinaryContent([]byte{0x7F, 'E', 'L', 'F', 2}))
}
