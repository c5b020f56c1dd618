package parser

import (
	"strings"
	"testing"
)

func TestTextParser_ParagraphsWithoutHeadings(t *testing.T) {
	input := "First paragraph line one.\nFirst paragraph line two.\n\nSecond paragraph.\n\nThird paragraph."
	p := &TextParser{}
	tree, err := p.Parse(strings.NewReader(input), "notes.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tree.Title != "notes" {
		t.Errorf("expected title %q, got %q", "notes", tree.Title)
	}
	if len(tree.Children) != 1 {
		t.Fatalf("expected 1 preamble child, got %d", len(tree.Children))
	}
	want := "First paragraph line one.\nFirst paragraph line two.\n\nSecond paragraph.\n\nThird paragraph."
	if got := tree.Children[0].Text; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestTextParser_LegalHeadings(t *testing.T) {
	input := `An Act to regulate data.

PART I
General provisions

Section 1. Definitions
In this Act "data" means information.

Section 2. Scope
This Act applies to controllers.

PART II
Enforcement

§ 10 Penalties
Fines may be imposed.`

	tree, err := (&TextParser{}).Parse(strings.NewReader(input), "dir/data-act.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Title != "data-act" {
		t.Errorf("expected title %q, got %q", "data-act", tree.Title)
	}
	if len(tree.Children) != 3 {
		t.Fatalf("expected preamble + 2 parts, got %d", len(tree.Children))
	}
	if tree.Children[0].Text != "An Act to regulate data." {
		t.Errorf("unexpected preamble %q", tree.Children[0].Text)
	}

	part1 := tree.Children[1]
	if part1.Title != "PART I" || part1.Text != "General provisions" {
		t.Errorf("unexpected part 1: %+v", part1)
	}
	if part1.Page != 3 {
		t.Errorf("expected part 1 to start on line 3, got %d", part1.Page)
	}
	if len(part1.Children) != 2 {
		t.Fatalf("expected 2 sections in part 1, got %d", len(part1.Children))
	}
	if part1.Children[1].Title != "Section 2. Scope" {
		t.Errorf("unexpected section title %q", part1.Children[1].Title)
	}
	if part1.Children[1].Text != "This Act applies to controllers." {
		t.Errorf("unexpected section text %q", part1.Children[1].Text)
	}

	part2 := tree.Children[2]
	if len(part2.Children) != 1 || part2.Children[0].Title != "§ 10 Penalties" {
		t.Fatalf("expected § heading under part 2, got %+v", part2.Children)
	}
}

func TestHeadingLevel(t *testing.T) {
	tests := []struct {
		line string
		want int
	}{
		{"PART IV", 1},
		{"Title 12", 1},
		{"Chapter 3 - Records", 2},
		{"SUBPART B", 2},
		{"Article 17", 3},
		{"Sec. 4. Short title", 3},
		{"§ 1983", 3},
		{"§§ 12", 3},
		{"The parties agree", 0},
		{"Partial performance", 0},
		{"", 0},
		{"Section " + strings.Repeat("x", 130), 0},
	}
	for _, tt := range tests {
		if got := HeadingLevel(tt.line); got != tt.want {
			t.Errorf("HeadingLevel(%q) = %d, want %d", tt.line, got, tt.want)
		}
	}
}

func TestTextParser_EmptyInput(t *testing.T) {
	p := &TextParser{}
	tree, err := p.Parse(strings.NewReader(""), "empty.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Title != "empty" {
		t.Errorf("expected title %q, got %q", "empty", tree.Title)
	}
	if len(tree.Children) != 0 {
		t.Errorf("expected 0 children for empty input, got %d", len(tree.Children))
	}
}

func TestTextParser_BlankLinesCollapse(t *testing.T) {
	// Runs of blank or whitespace-only lines separate exactly one paragraph break.
	for _, input := range []string{"Para one.\n\n\n\nPara two.", "Para one.\n   \nPara two."} {
		tree, err := (&TextParser{}).Parse(strings.NewReader(input), "gaps.txt")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tree.Children) != 1 {
			t.Fatalf("expected 1 child, got %d", len(tree.Children))
		}
		if got := tree.Children[0].Text; got != "Para one.\n\nPara two." {
			t.Errorf("input %q: got %q", input, got)
		}
	}
}
