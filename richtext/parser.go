// Package richtext converts the embedded XML markup of rich-text fields into
// a tree of typed text nodes. The mapping engine invokes it for dom and
// domtable fields only; all other field kinds never reach this package.
package richtext

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Node is one element of the parsed rich-text tree. Content holds either the
// text of a leaf node (string) or the child nodes of a container ([]Node).
type Node struct {
	Type    string         `json:"type"`
	Content any            `json:"content,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// elementTypes maps markup tag names to output node types. Unlisted tags are
// carried through as "block" so unknown markup degrades instead of failing.
var elementTypes = map[string]string{
	"div":     "block",
	"p":       "paragraph",
	"br":      "linebreak",
	"b":       "text",
	"strong":  "text",
	"i":       "text",
	"em":      "text",
	"u":       "text",
	"ul":      "list",
	"ol":      "list",
	"li":      "listitem",
	"a":       "link",
	"link":    "link",
	"table":   "table",
	"tr":      "tablerow",
	"td":      "tablecell",
	"th":      "tablecell",
	"default": "block",
}

// formats maps inline style tags to the format flag set on text nodes.
var formats = map[string]string{
	"b":      "bold",
	"strong": "bold",
	"i":      "italic",
	"em":     "italic",
	"u":      "underline",
}

// Parser parses rich-text markup strings. The zero value is ready to use.
type Parser struct{}

// NewParser creates a rich-text Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse converts a markup string into a slice of Nodes. The markup is a
// fragment, not a document, so it is parsed under a synthetic root element.
func (p *Parser) Parse(markup string) ([]Node, error) {
	dec := xml.NewDecoder(strings.NewReader("<root>" + markup + "</root>"))
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity

	// Consume the synthetic root start element.
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("parsing rich-text markup: %w", err)
	}

	nodes, err := p.parseChildren(dec)
	if err != nil {
		return nil, fmt.Errorf("parsing rich-text markup: %w", err)
	}
	return nodes, nil
}

// parseChildren reads tokens until the enclosing element closes, building one
// Node per child element or text run.
func (p *Parser) parseChildren(dec *xml.Decoder) ([]Node, error) {
	nodes := []Node{}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			node, err := p.parseElement(dec, t)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
		case xml.CharData:
			text := string(t)
			if strings.TrimSpace(text) == "" {
				continue
			}
			nodes = append(nodes, Node{Type: "text", Content: text})
		case xml.EndElement:
			return nodes, nil
		}
	}
}

// parseElement builds the Node for one start element, recursing into its
// children.
func (p *Parser) parseElement(dec *xml.Decoder, start xml.StartElement) (Node, error) {
	tag := strings.ToLower(start.Name.Local)
	nodeType, ok := elementTypes[tag]
	if !ok {
		nodeType = elementTypes["default"]
	}

	node := Node{Type: nodeType}

	data := map[string]any{}
	for _, attr := range start.Attr {
		data[attr.Name.Local] = attr.Value
	}
	if format, ok := formats[tag]; ok {
		data["format"] = format
	}
	if len(data) > 0 {
		node.Data = data
	}

	children, err := p.parseChildren(dec)
	if err != nil {
		return Node{}, err
	}

	// Inline style elements wrapping a single text run collapse into a text
	// node carrying the format, matching the shape consumers render from.
	if nodeType == "text" && len(children) == 1 && children[0].Type == "text" {
		node.Content = children[0].Content
		return node, nil
	}

	if len(children) > 0 {
		node.Content = children
	}
	return node, nil
}
