package richtext

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	p := NewParser()

	tests := []struct {
		name   string
		markup string
		want   []Node
	}{
		{
			"empty markup",
			"",
			[]Node{},
		},
		{
			"bare text",
			"hello",
			[]Node{{Type: "text", Content: "hello"}},
		},
		{
			"paragraph",
			"<p>hello</p>",
			[]Node{{Type: "paragraph", Content: []Node{
				{Type: "text", Content: "hello"},
			}}},
		},
		{
			"bold collapses to formatted text",
			"<p>read <b>this</b></p>",
			[]Node{{Type: "paragraph", Content: []Node{
				{Type: "text", Content: "read "},
				{Type: "text", Content: "this", Data: map[string]any{"format": "bold"}},
			}}},
		},
		{
			"italic via em",
			"<em>soft</em>",
			[]Node{{Type: "text", Content: "soft", Data: map[string]any{"format": "italic"}}},
		},
		{
			"link with attributes",
			`<a href="https://example.com">out</a>`,
			[]Node{{
				Type:    "link",
				Content: []Node{{Type: "text", Content: "out"}},
				Data:    map[string]any{"href": "https://example.com"},
			}},
		},
		{
			"list",
			"<ul><li>one</li><li>two</li></ul>",
			[]Node{{Type: "list", Content: []Node{
				{Type: "listitem", Content: []Node{{Type: "text", Content: "one"}}},
				{Type: "listitem", Content: []Node{{Type: "text", Content: "two"}}},
			}}},
		},
		{
			"line break",
			"<p>a<br/>b</p>",
			[]Node{{Type: "paragraph", Content: []Node{
				{Type: "text", Content: "a"},
				{Type: "linebreak"},
				{Type: "text", Content: "b"},
			}}},
		},
		{
			"table",
			"<table><tr><td>cell</td></tr></table>",
			[]Node{{Type: "table", Content: []Node{
				{Type: "tablerow", Content: []Node{
					{Type: "tablecell", Content: []Node{{Type: "text", Content: "cell"}}},
				}},
			}}},
		},
		{
			"unknown tag degrades to block",
			"<figure>x</figure>",
			[]Node{{Type: "block", Content: []Node{{Type: "text", Content: "x"}}}},
		},
		{
			"div with attributes",
			`<div data-style="wide">x</div>`,
			[]Node{{
				Type:    "block",
				Content: []Node{{Type: "text", Content: "x"}},
				Data:    map[string]any{"data-style": "wide"},
			}},
		},
		{
			"whitespace between blocks is dropped",
			"<p>a</p>\n  <p>b</p>",
			[]Node{
				{Type: "paragraph", Content: []Node{{Type: "text", Content: "a"}}},
				{Type: "paragraph", Content: []Node{{Type: "text", Content: "b"}}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse(tt.markup)
			if err != nil {
				t.Fatalf("Parse() returned error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse(%q) = %#v, want %#v", tt.markup, got, tt.want)
			}
		})
	}
}

func TestParse_BoldWithNestedElements(t *testing.T) {
	// An inline style element wrapping more than a single text run keeps its
	// children instead of collapsing.
	p := NewParser()
	got, err := p.Parse("<b>one<br/>two</b>")
	if err != nil {
		t.Fatalf("Parse() returned error: %v", err)
	}
	want := []Node{{
		Type: "text",
		Data: map[string]any{"format": "bold"},
		Content: []Node{
			{Type: "text", Content: "one"},
			{Type: "linebreak"},
			{Type: "text", Content: "two"},
		},
	}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Parse() = %#v, want %#v", got, want)
	}
}
