package markdown

import "testing"

func TestRender_FencedBlockThenText(t *testing.T) {
	blocks := Render("```js\nconst x=1;\n```\nafter the code")

	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d: %+v", len(blocks), blocks)
	}
	if blocks[0].Kind != KindCodeBlock {
		t.Fatalf("expected code block first, got %q", blocks[0].Kind)
	}
	if blocks[0].Language != "js" {
		t.Fatalf("expected language js, got %q", blocks[0].Language)
	}
	if blocks[0].Code != "const x=1;" {
		t.Fatalf("unexpected code: %q", blocks[0].Code)
	}
	if blocks[1].Kind != KindParagraph || blocks[1].Text != "after the code" {
		t.Fatalf("unexpected trailing block: %+v", blocks[1])
	}
}

func TestRender_FenceWithoutLanguage(t *testing.T) {
	blocks := Render("```\nplain\n```")
	if len(blocks) != 1 || blocks[0].Kind != KindCodeBlock {
		t.Fatalf("unexpected blocks: %+v", blocks)
	}
	if blocks[0].Language != "text" {
		t.Fatalf("expected default language text, got %q", blocks[0].Language)
	}
	if blocks[0].Code != "plain" {
		t.Fatalf("unexpected code: %q", blocks[0].Code)
	}
}

func TestRender_InlineCodeThenText(t *testing.T) {
	blocks := Render("`foo()` did X")

	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d: %+v", len(blocks), blocks)
	}
	if blocks[0].Kind != KindInlineCode || blocks[0].Text != "foo()" {
		t.Fatalf("unexpected inline block: %+v", blocks[0])
	}
	if blocks[1].Kind != KindParagraph || blocks[1].Text != " did X" {
		t.Fatalf("unexpected paragraph: %+v", blocks[1])
	}
}

func TestRender_InlineNeverFiresInsideFence(t *testing.T) {
	blocks := Render("```\nuse `tick` here\n```")
	if len(blocks) != 1 {
		t.Fatalf("expected only the fenced block, got %+v", blocks)
	}
	if blocks[0].Kind != KindCodeBlock {
		t.Fatalf("expected code block, got %q", blocks[0].Kind)
	}
}

func TestRender_Headings(t *testing.T) {
	blocks := Render("# one\n## two\n### three")
	if len(blocks) != 3 {
		t.Fatalf("expected 3 headings, got %+v", blocks)
	}
	for i, want := range []struct {
		level int
		text  string
	}{{1, "one"}, {2, "two"}, {3, "three"}} {
		b := blocks[i]
		if b.Kind != KindHeading || b.Level != want.level || b.Text != want.text {
			t.Fatalf("heading %d: %+v", i, b)
		}
	}
}

func TestRender_Lists(t *testing.T) {
	blocks := Render("- first\n  - nested\n1. numbered")

	if len(blocks) != 3 {
		t.Fatalf("expected 3 list items, got %+v", blocks)
	}
	if blocks[0].Kind != KindListItem || blocks[0].Indent != 0 || blocks[0].Ordinal != "" || blocks[0].Text != "first" {
		t.Fatalf("unexpected bullet: %+v", blocks[0])
	}
	if blocks[1].Indent != 2 || blocks[1].Text != "nested" {
		t.Fatalf("unexpected nested bullet: %+v", blocks[1])
	}
	if blocks[2].Ordinal != "1." || blocks[2].Text != "numbered" {
		t.Fatalf("unexpected ordered item: %+v", blocks[2])
	}
}

func TestRender_Emphasis(t *testing.T) {
	blocks := Render("say **loud** and *soft*")
	if len(blocks) != 1 || blocks[0].Kind != KindParagraph {
		t.Fatalf("unexpected blocks: %+v", blocks)
	}
	want := "say <strong>loud</strong> and <em>soft</em>"
	if blocks[0].Text != want {
		t.Fatalf("got %q, want %q", blocks[0].Text, want)
	}
}

func TestRender_PlainText(t *testing.T) {
	blocks := Render("just a sentence")
	if len(blocks) != 1 || blocks[0].Kind != KindParagraph || blocks[0].Text != "just a sentence" {
		t.Fatalf("unexpected blocks: %+v", blocks)
	}
}
