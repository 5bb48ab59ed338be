package searchindex

import "testing"

func TestStripMarkup(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"<i>Hello</i>", "Hello"},
		{"<b>Bold</b> and <u>under</u>", "Bold and under"},
		{`<font color="#ffff00">Yellow</font> text`, "Yellow text"},
		{"{\\an8}Top of screen", "Top of screen"},
		{"line one\nline two", "line one line two"},
		{"first<br>second", "first second"},
		{"Tom &amp; Jerry", "Tom & Jerry"},
		{"5 < 6", "5 < 6"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := StripMarkup(tt.in); got != tt.want {
			t.Errorf("StripMarkup(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
