package parser

import (
	"strings"
	"testing"
)

func TestHTMLParser_StatutePage(t *testing.T) {
	input := `<html><head><title>Data Act  2024</title><style>p{}</style></head>
<body>
<nav><p>Home | Laws</p></nav>
<p>Preamble.</p>
<h1>Part 1</h1>
<p>General.</p>
<h2>Section 1</h2>
<p>Words <b>in bold</b> here.</p>
<ul><li>item one</li><li>item two</li></ul>
<script>var x = 1;</script>
<h1>Part 2</h1>
<div><p>Nested paragraph.</p></div>
<footer><p>Copyright</p></footer>
</body></html>`

	tree, err := (&HTMLParser{}).Parse(strings.NewReader(input), "act.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Title != "Data Act 2024" {
		t.Errorf("expected title from <title>, got %q", tree.Title)
	}
	if len(tree.Children) != 3 {
		t.Fatalf("expected preamble + 2 parts, got %d", len(tree.Children))
	}
	if tree.Children[0].Text != "Preamble." {
		t.Errorf("nav text leaked into preamble: %q", tree.Children[0].Text)
	}

	part1 := tree.Children[1]
	if len(part1.Children) != 1 {
		t.Fatalf("expected one section in part 1, got %d", len(part1.Children))
	}
	want := "Words in bold here.\n\nitem one\n\nitem two"
	if got := part1.Children[0].Text; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	text := tree.Text()
	for _, banned := range []string{"Copyright", "var x", "Home"} {
		if strings.Contains(text, banned) {
			t.Errorf("expected %q to be skipped, got %q", banned, text)
		}
	}
	if tree.Children[2].Text != "Nested paragraph." {
		t.Errorf("unexpected part 2 text %q", tree.Children[2].Text)
	}
}

func TestHTMLParser_NoTitleUsesFilename(t *testing.T) {
	tree, err := (&HTMLParser{}).Parse(strings.NewReader("<p>hello</p>"), "page.htm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Title != "page" {
		t.Errorf("expected %q, got %q", "page", tree.Title)
	}
	if len(tree.Children) != 1 || tree.Children[0].Text != "hello" {
		t.Errorf("unexpected children %+v", tree.Children)
	}
}
