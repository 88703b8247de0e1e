package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrip_FullPipeline(t *testing.T) {
	src := "---\ntitle: X\n---\nimport Foo from './Foo'\n\n# Heading\n\n" +
		"Some **bold** and *it* and __u__ and _e_ text with `code` and [link](http://x) and ![img](a.png).\n\n" +
		"```js\nconst a = 1;\n```\n\n> quote\n\n- item one\n1. item two\n\n---\n\n" +
		"<Callout type=\"info\">inside</Callout>\n<!-- comment -->"

	got := Strip(src)

	assert.Equal(t, "Heading Some bold and it and u and e text with and link and . quote item one item two inside", got)
}

func TestStrip_ImagesVanishEntirely(t *testing.T) {
	assert.Equal(t, "See .", Strip("See ![diagram](d.png)."))
	assert.Equal(t, "See docs.", Strip("See [docs](https://x.y/z)."))
}

func TestStrip_TagsKeepWordBoundaries(t *testing.T) {
	assert.Equal(t, "one two", Strip("one<br/>two"))
}

func TestStrip_Idempotent(t *testing.T) {
	inputs := []string{
		"# Title\n\nPlain text.",
		"**a *b* c** and __d _e_ f__",
		"[[nested](a)](b) and ![x](y)",
		"* * *\n\n- - item",
		"1. 2. 3. deep",
		"> > double quote",
		"`a` `` b ``",
		"snake_case_name and _x",
		"<div><span>tags</span></div>",
		"",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			once := Strip(in)
			assert.Equal(t, once, Strip(once))
		})
	}
}

func TestStrip_CollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", Strip("  a\n\n\n\nb\t\tc  "))
}
