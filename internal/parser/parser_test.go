package parser

import (
	"strings"
	"testing"
)

func TestForFile(t *testing.T) {
	tests := []struct {
		filename string
		wantType string
		wantErr  bool
	}{
		{"a.txt", "*parser.TextParser", false},
		{"a.MD", "*parser.MarkdownParser", false},
		{"a.markdown", "*parser.MarkdownParser", false},
		{"a.csv", "*parser.CSVParser", false},
		{"a.htm", "*parser.HTMLParser", false},
		{"a.pdf", "*parser.PDFParser", false},
		{"a.docx", "*parser.DOCXParser", false},
		{"a.exe", "", true},
		{"noext", "", true},
	}
	for _, tt := range tests {
		p, err := ForFile(tt.filename, Options{})
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", tt.filename)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.filename, err)
		}
		if got := typeName(p); got != tt.wantType {
			t.Errorf("%s: expected %s, got %s", tt.filename, tt.wantType, got)
		}
	}
}

func TestForFile_PdftotextOption(t *testing.T) {
	p, err := ForFile("x.pdf", Options{PdftotextFallback: true})
	if err != nil {
		t.Fatal(err)
	}
	if !p.(*PDFParser).FallbackPdftotext {
		t.Error("expected pdftotext fallback to be enabled")
	}
}

func TestParseBytes(t *testing.T) {
	tree, err := ParseBytes([]byte("Article 1\nScope."), "law.txt", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := tree.Text(); got != "Article 1\n\nScope." {
		t.Errorf("unexpected text %q", got)
	}

	if _, err := ParseBytes([]byte("x"), "law.bin", Options{}); err == nil {
		t.Error("expected unsupported extension error")
	}
}

func TestIsSupportedExtension(t *testing.T) {
	if !IsSupportedExtension("A.PDF") {
		t.Error("expected .PDF to be supported")
	}
	if IsSupportedExtension("a.zip") {
		t.Error("expected .zip to be unsupported")
	}
}

func TestDocxHeadingLevel(t *testing.T) {
	tests := map[string]int{
		"Heading1":  1,
		"heading 3": 3,
		"Heading 9": 9,
		"Title":     0,
		"Heading":   0,
		"Normal":    0,
		"":          0,
	}
	for style, want := range tests {
		if got := docxHeadingLevel(style); got != want {
			t.Errorf("docxHeadingLevel(%q) = %d, want %d", style, got, want)
		}
	}
}

func TestPDFParser_RejectsGarbage(t *testing.T) {
	_, err := (&PDFParser{}).Parse(strings.NewReader("not a pdf"), "bad.pdf")
	if err == nil {
		t.Fatal("expected error for non-pdf input")
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *TextParser:
		return "*parser.TextParser"
	case *MarkdownParser:
		return "*parser.MarkdownParser"
	case *CSVParser:
		return "*parser.CSVParser"
	case *HTMLParser:
		return "*parser.HTMLParser"
	case *PDFParser:
		return "*parser.PDFParser"
	case *DOCXParser:
		return "*parser.DOCXParser"
	}
	return "unknown"
}
