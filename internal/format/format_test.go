package format

import (
	"bytes"
	"strings"
	"testing"
)

type sample struct {
	ID     string   `json:"id"`
	Length int64    `json:"length"`
	Tags   []string `json:"tags,omitempty"`
}

func TestFormatters(t *testing.T) {
	payload := sample{ID: "abc", Length: 12, Tags: []string{"x"}}

	tests := []struct {
		name string
		want []string
	}{
		{name: "json", want: []string{`"id": "abc"`, `"length": 12`}},
		{name: "yaml", want: []string{"id: abc", "length: 12", "- x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ForName(tt.name)
			if err != nil {
				t.Fatalf("formatter: %v", err)
			}
			var buf bytes.Buffer
			if err := f.Write(&buf, payload); err != nil {
				t.Fatalf("write: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Fatalf("expected %q in output:\n%s", want, buf.String())
				}
			}
		})
	}

	if _, err := ForName("xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
