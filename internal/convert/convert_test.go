package convert

import (
	"strings"
	"testing"
)

func TestForFile(t *testing.T) {
	tests := []struct {
		filename string
		wantErr  bool
	}{
		{"doc.md", false},
		{"doc.markdown", false},
		{"notes.txt", false},
		{"data.csv", false},
		{"page.html", false},
		{"page.HTM", false},
		{"report.pdf", false},
		{"memo.docx", false},
		{"image.png", true},
		{"noext", true},
	}
	for _, tt := range tests {
		_, err := ForFile(tt.filename)
		if (err != nil) != tt.wantErr {
			t.Errorf("ForFile(%q): err = %v, wantErr %v", tt.filename, err, tt.wantErr)
		}
		if got := IsSupportedExtension(tt.filename); got == tt.wantErr {
			t.Errorf("IsSupportedExtension(%q) = %v", tt.filename, got)
		}
	}
}

func TestTextConverter_Passthrough(t *testing.T) {
	input := "# Already markdown\n\nwith content\n"
	c := &TextConverter{}
	got, err := c.Convert(strings.NewReader(input), "doc.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != input {
		t.Errorf("passthrough altered content: %q", got)
	}
}

func TestHTMLConverter_HeadingsAndText(t *testing.T) {
	input := `<html><head><title>ignored</title><script>var x = 1;</script></head>
<body>
<h1>Main Title</h1>
<p>First paragraph.</p>
<h2>Sub <em>Section</em></h2>
<p>Second paragraph.</p>
<nav>skip this</nav>
</body></html>`

	c := &HTMLConverter{}
	got, err := c.Convert(strings.NewReader(input), "page.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(got, "# Main Title\n") {
		t.Errorf("missing h1 heading: %q", got)
	}
	if !strings.Contains(got, "## Sub Section\n") {
		t.Errorf("missing h2 heading with inline markup flattened: %q", got)
	}
	if !strings.Contains(got, "First paragraph.") || !strings.Contains(got, "Second paragraph.") {
		t.Errorf("missing paragraph text: %q", got)
	}
	if strings.Contains(got, "skip this") || strings.Contains(got, "var x") {
		t.Errorf("nav/script content leaked: %q", got)
	}
}

func TestCSVConverter_BatchedRows(t *testing.T) {
	var rows []string
	rows = append(rows, "name,city")
	for i := 0; i < 25; i++ {
		rows = append(rows, "person,place")
	}
	input := strings.Join(rows, "\n") + "\n"

	c := &CSVConverter{}
	got, err := c.Convert(strings.NewReader(input), "data.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 25 data rows split into a batch of 20 and a batch of 5; row numbers
	// count the header line.
	if !strings.Contains(got, "# Rows 2-21\n") {
		t.Errorf("missing first batch heading: %q", got)
	}
	if !strings.Contains(got, "# Rows 22-26\n") {
		t.Errorf("missing second batch heading: %q", got)
	}
	if !strings.Contains(got, "name: person, city: place\n") {
		t.Errorf("missing labelled row: %q", got)
	}
}

func TestCSVConverter_Empty(t *testing.T) {
	c := &CSVConverter{}
	got, err := c.Convert(strings.NewReader(""), "data.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty output, got %q", got)
	}
}
