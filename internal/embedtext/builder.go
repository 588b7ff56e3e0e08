// Package embedtext turns heterogeneous document records into a canonical,
// deterministic text blob. The same text feeds both the embedding provider
// and the lexical fallback ranker, so semantic and lexical results stay
// comparable in meaning.
package embedtext

import (
	"fmt"
	"strings"

	"github.com/postdeck/retrieval/internal/domain"
)

// Sentinel texts returned when a document yields no usable parts, so
// downstream embedding and lexical scoring never see an empty string.
const (
	UntitledCarousel = "Untitled carousel"
	UntitledTemplate = "Untitled template"
)

const slideSeparator = " | "

// carouselSlideFields is the priority order for picking a slide's text.
var carouselSlideFields = []string{
	"rawText", "finalText", "headline", "subheadline", "bodyText", "content", "text",
}

// templateNameFields is the priority order for a template's display name.
var templateNameFields = []string{"name", "title", "templateName"}

// ForCollection builds the canonical text for a document of the named
// collection. Deterministic and total: missing or malformed fields are
// simply omitted.
func ForCollection(collection string, fields map[string]any) string {
	return Build(domain.KindOf(collection), fields)
}

// Build assembles the canonical text for the given document kind.
func Build(kind domain.Kind, fields map[string]any) string {
	var parts []string
	switch kind {
	case domain.KindTemplate:
		parts = templateParts(fields)
	default:
		parts = carouselParts(fields)
	}

	text := strings.TrimSpace(strings.Join(parts, "\n"))
	if text == "" {
		if kind == domain.KindTemplate {
			return UntitledTemplate
		}
		return UntitledCarousel
	}
	return text
}

func carouselParts(fields map[string]any) []string {
	var parts []string

	if title := str(fields, "title"); title != "" {
		parts = append(parts, "Title: "+title)
	}
	parts = appendNonEmpty(parts, str(fields, "description"))
	parts = appendNonEmpty(parts, str(fields, "category"))

	if slides := slideTexts(fields, firstSlideField(carouselSlideFields...)); len(slides) > 0 {
		parts = append(parts, strings.Join(slides, slideSeparator))
	}

	parts = appendNonEmpty(parts, str(fields, "caption"))
	parts = appendNonEmpty(parts, str(fields, "hook"))
	parts = appendNonEmpty(parts, joinedTags(fields))

	return parts
}

func templateParts(fields map[string]any) []string {
	var parts []string

	parts = appendNonEmpty(parts, firstStr(fields, templateNameFields...))
	parts = appendNonEmpty(parts, str(fields, "description"))
	parts = appendNonEmpty(parts, str(fields, "category"))
	parts = appendNonEmpty(parts, joinedTags(fields))
	parts = appendNonEmpty(parts, str(fields, "style"))
	parts = appendNonEmpty(parts, themeName(fields["theme"]))
	parts = appendNonEmpty(parts, str(fields, "layout"))

	if slides := slideTexts(fields, placeholderSlideText); len(slides) > 0 {
		parts = append(parts, strings.Join(slides, slideSeparator))
	}

	return parts
}

// slideTexts renders "Slide N: <text>" for every slide the extractor can
// make text for. Numbering follows the slide's position, starting at 1.
func slideTexts(fields map[string]any, extract func(map[string]any) string) []string {
	raw, ok := fields["slides"].([]any)
	if !ok {
		return nil
	}

	var out []string
	for i, s := range raw {
		slide, ok := s.(map[string]any)
		if !ok {
			continue
		}
		if text := extract(slide); text != "" {
			out = append(out, fmt.Sprintf("Slide %d: %s", i+1, text))
		}
	}
	return out
}

// firstSlideField extracts the first non-empty field among keys.
func firstSlideField(keys ...string) func(map[string]any) string {
	return func(slide map[string]any) string {
		return firstStr(slide, keys...)
	}
}

// placeholderSlideText joins a template slide's placeholder title and body.
func placeholderSlideText(slide map[string]any) string {
	title := firstStr(slide, "placeholderTitle", "title")
	body := firstStr(slide, "placeholderBody", "body")
	switch {
	case title != "" && body != "":
		return title + " " + body
	case title != "":
		return title
	default:
		return body
	}
}

// themeName accepts a plain string theme or an object with a "name" field.
func themeName(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		return str(t, "name")
	default:
		return ""
	}
}

func joinedTags(fields map[string]any) string {
	raw, ok := fields["tags"].([]any)
	if !ok {
		return ""
	}
	var tags []string
	for _, t := range raw {
		if s, ok := t.(string); ok && strings.TrimSpace(s) != "" {
			tags = append(tags, strings.TrimSpace(s))
		}
	}
	return strings.Join(tags, ", ")
}

func str(fields map[string]any, key string) string {
	if s, ok := fields[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func firstStr(fields map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := str(fields, k); s != "" {
			return s
		}
	}
	return ""
}

func appendNonEmpty(parts []string, s string) []string {
	if s != "" {
		return append(parts, s)
	}
	return parts
}
