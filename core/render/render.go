// Package render converts structured-content node trees from packaged
// lexicons into display markup. The node model is the decoded JSON shape:
// a plain string, a []any sequence, or a map[string]any tagged node with
// "tag", "content" and optional "data" fields.
package render

import (
	"fmt"
	"strings"
)

// Resolver resolves a lexicon-relative resource path to a local URI.
// An empty return value means the resource is unavailable; the renderer
// emits nothing for it. Implementations must be safe for concurrent use.
type Resolver interface {
	Resolve(relPath string) string
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(relPath string) string

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(relPath string) string { return f(relPath) }

// wrapperTags are container tags passed through as-is around their
// rendered content.
var wrapperTags = map[string]bool{
	"span": true, "div": true, "p": true,
	"b": true, "i": true, "u": true, "s": true,
	"sub": true, "sup": true,
	"strong": true, "em": true, "small": true, "big": true,
	"tr": true, "td": true, "th": true, "thead": true, "tbody": true,
}

// semanticStyles maps a node's data "content" role to a fixed inline
// style. This is a closed table: roles not listed here render unstyled.
var semanticStyles = map[string]string{
	"part-of-speech-info": "background-color:#565656;color:#FFFFFF;",
}

// EscapeText escapes the three reserved markup characters in a plain
// text node. Nothing else is altered.
func EscapeText(text string) string {
	text = strings.ReplaceAll(text, "&", "&amp;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	text = strings.ReplaceAll(text, ">", "&gt;")
	return text
}

// Node renders a structured-content node tree to display markup.
// resolver may be nil, in which case image nodes render nothing.
// The function holds no mutable state and is safe to call concurrently.
func Node(node any, resolver Resolver) string {
	switch n := node.(type) {
	case string:
		return EscapeText(n)
	case []any:
		var sb strings.Builder
		for _, child := range n {
			sb.WriteString(Node(child, resolver))
		}
		return sb.String()
	case map[string]any:
		return renderTagged(n, resolver)
	}
	return ""
}

// renderTagged renders a tagged node. Content is rendered first; the tag
// then decides the wrapping.
func renderTagged(node map[string]any, resolver Resolver) string {
	inner := ""
	if content, ok := node["content"]; ok {
		inner = Node(content, resolver)
	}

	tag, _ := node["tag"].(string)
	switch tag {
	case "":
		return inner
	case "br":
		return "<br>"
	case "rt":
		// Ruby annotation text is never surfaced in rendered glosses.
		return ""
	case "ruby":
		return inner
	case "ul":
		return "<ul style='margin:0;padding-left:20px;'>" + inner + "</ul>"
	case "ol":
		return "<ol style='margin:0;padding-left:20px;'>" + inner + "</ol>"
	case "li":
		return "<li>" + inner + "</li>"
	case "table":
		return "<table border='1' cellspacing='0' cellpadding='2'>" + inner + "</table>"
	case "img":
		return renderImage(node, resolver)
	}

	if wrapperTags[tag] {
		if style := nodeStyle(node); style != "" {
			return fmt.Sprintf("<%s style='%s'>%s</%s>", tag, style, inner, tag)
		}
		return fmt.Sprintf("<%s>%s</%s>", tag, inner, tag)
	}

	// Unknown tags degrade to their content so future schema additions
	// keep rendering their text.
	return inner
}

// nodeStyle returns the fixed style for a node's semantic role, if any.
func nodeStyle(node map[string]any) string {
	data, ok := node["data"].(map[string]any)
	if !ok {
		return ""
	}
	role, ok := data["content"].(string)
	if !ok {
		return ""
	}
	return semanticStyles[role]
}

// renderImage resolves an image node's path through the resolver and
// emits an img element. Unresolved images render nothing, never an error.
func renderImage(node map[string]any, resolver Resolver) string {
	if resolver == nil {
		return ""
	}
	path, _ := node["path"].(string)
	if path == "" {
		return ""
	}
	uri := resolver.Resolve(path)
	if uri == "" {
		return ""
	}
	return fmt.Sprintf("<img src='%s'>", uri)
}

// ExtractText folds a node tree into plain text, skipping ruby
// annotation text. It is the best-effort fallback used for glossary
// shapes that are not renderable structured content.
func ExtractText(node any) string {
	switch n := node.(type) {
	case string:
		return n
	case []any:
		var sb strings.Builder
		for _, child := range n {
			sb.WriteString(ExtractText(child))
		}
		return sb.String()
	case map[string]any:
		if tag, _ := n["tag"].(string); tag == "rt" {
			return ""
		}
		if content, ok := n["content"]; ok {
			return ExtractText(content)
		}
	}
	return ""
}
