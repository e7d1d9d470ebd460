package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkdownToHTML(t *testing.T) {
	tests := []struct{ in, want string }{
		{"✅ Switched to **GROQ** mode for you.", "✅ Switched to <strong>GROQ</strong> mode for you."},
		{"**Yui**\nVersion: `v1`", "<strong>Yui</strong><br/>Version: <code>v1</code>"},
		{"a <b> & c", "a &lt;b&gt; &amp; c"},
		{"unmatched **bold", "unmatched **bold"},
		{"```\nx < y\n```", "<pre><code>x &lt; y<br/></code></pre>"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, markdownToHTML(tt.in), tt.in)
	}
}

func TestHasMarkdown(t *testing.T) {
	assert.True(t, hasMarkdown("**x**"))
	assert.True(t, hasMarkdown("`x`"))
	assert.False(t, hasMarkdown("plain *text*"))
}

func TestContainsWord(t *testing.T) {
	tests := []struct {
		s, word string
		want    bool
	}{
		{"Yui: hello", "Yui", true},
		{"hey yui, what's up", "Yui", true},
		{"ask YUI", "Yui", true},
		{"Yuichi is here", "Yui", false},
		{"mayui", "Yui", false},
		{"mayui and yui", "Yui", true},
		{"anything", "", false},
		{"Yui-chan", "Yui", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, containsWord(tt.s, tt.word), "%q in %q", tt.word, tt.s)
	}
}

func TestLocalpart(t *testing.T) {
	assert.Equal(t, "yui", localpart("@yui:example.org"))
	assert.Equal(t, "yui", localpart("yui"))
}
