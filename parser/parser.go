package parser

import (
	"fmt"
	"mime"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultExtension is used when the content type maps to no known extension.
const DefaultExtension = ".jpg"

var acceptedSchemes = []string{"http://", "https://"}

// ParseURLList splits comma separated input into trimmed, non-empty URLs.
func ParseURLList(input string) []string {
	parts := strings.Split(input, ",")
	urls := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			urls = append(urls, part)
		}
	}
	return urls
}

// HasAcceptedScheme is a purely syntactic prefix check. It does not parse
// or resolve the URL.
func HasAcceptedScheme(rawURL string) bool {
	for _, prefix := range acceptedSchemes {
		if strings.HasPrefix(rawURL, prefix) {
			return true
		}
	}
	return false
}

// IsImageContentType reports whether the declared Content-Type is an image.
func IsImageContentType(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}

// ExtensionForContentType returns the conventional file extension for the
// declared media type, or DefaultExtension when it cannot be inferred.
func ExtensionForContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(contentType)
	}
	if m := mimetype.Lookup(strings.ToLower(mediaType)); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	return DefaultExtension
}

// FilenameFor derives the on-disk name for an image fetched from rawURL.
// The last path segment is used when it carries an extension; otherwise a
// name is synthesized from index and the content type.
func FilenameFor(rawURL, contentType string, index int) string {
	name := lastPathSegment(rawURL)
	if name == "" || !strings.Contains(name, ".") {
		name = FallbackFilename(contentType, index)
	}

	safe := SanitizeFilename(name)
	if safe == "" || strings.Trim(safe, ".") == "" {
		safe = FallbackFilename(contentType, index)
	}
	return safe
}

// SanitizeFilename keeps ASCII letters, digits, spaces, periods and
// underscores, then trims trailing whitespace.
func SanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '.', r == '_':
			b.WriteRune(r)
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// FallbackFilename is the synthesized name used when the URL yields none.
func FallbackFilename(contentType string, index int) string {
	return fmt.Sprintf("downloaded_image_%d%s", index, ExtensionForContentType(contentType))
}

func lastPathSegment(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	p := parsed.Path
	if i := strings.LastIndex(p, "/"); i >= 0 {
		p = p[i+1:]
	}
	return p
}
