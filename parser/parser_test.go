package parser

import (
	"reflect"
	"testing"
)

func TestParseURLList(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "empty", input: "", want: []string{}},
		{name: "only separators", input: " , ,,", want: []string{}},
		{
			name:  "trims and drops blanks",
			input: " https://a.test/x.png ,, https://b.test/y.gif",
			want:  []string{"https://a.test/x.png", "https://b.test/y.gif"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseURLList(tt.input); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ParseURLList(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestHasAcceptedScheme(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{url: "http://example.com/a.png", want: true},
		{url: "https://example.com/a.png", want: true},
		{url: "ftp://example.com/a.png", want: false},
		{url: "HTTP://example.com/a.png", want: false},
		{url: "not-a-url", want: false},
		{url: "", want: false},
	}

	for _, tt := range tests {
		if got := HasAcceptedScheme(tt.url); got != tt.want {
			t.Errorf("HasAcceptedScheme(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestIsImageContentType(t *testing.T) {
	if !IsImageContentType("image/png") {
		t.Fatalf("image/png should be an image")
	}
	if IsImageContentType("text/html; charset=utf-8") {
		t.Fatalf("text/html should not be an image")
	}
	if IsImageContentType("") {
		t.Fatalf("empty content type should not be an image")
	}
}

func TestExtensionForContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{contentType: "image/png", want: ".png"},
		{contentType: "image/gif", want: ".gif"},
		{contentType: "image/webp", want: ".webp"},
		{contentType: "image/png; charset=binary", want: ".png"},
		{contentType: "image/x-unheard-of", want: ".jpg"},
		{contentType: "", want: ".jpg"},
	}

	for _, tt := range tests {
		if got := ExtensionForContentType(tt.contentType); got != tt.want {
			t.Errorf("ExtensionForContentType(%q) = %q, want %q", tt.contentType, got, tt.want)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{name: "photo?id=9.jpg", want: "photoid9.jpg"},
		{name: "my photo.png", want: "my photo.png"},
		{name: "snake_case-name.gif", want: "snake_casename.gif"},
		{name: "trailing.png   ", want: "trailing.png"},
		{name: "ünïcode.png", want: "ncode.png"},
	}

	for _, tt := range tests {
		if got := SanitizeFilename(tt.name); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestFilenameFor(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		contentType string
		index       int
		want        string
	}{
		{name: "path segment", url: "https://example.com/a.png", contentType: "image/png", index: 1, want: "a.png"},
		{name: "query is not part of the name", url: "https://example.com/photo?id=9.jpg", contentType: "image/jpeg", index: 2, want: "downloaded_image_2.jpg"},
		{name: "escaped characters", url: "https://example.com/photo%3Fid=9.jpg", contentType: "image/jpeg", index: 3, want: "photoid9.jpg"},
		{name: "decoded spaces", url: "https://example.com/my%20cat.gif", contentType: "image/gif", index: 1, want: "my cat.gif"},
		{name: "no path", url: "https://example.com", contentType: "image/gif", index: 4, want: "downloaded_image_4.gif"},
		{name: "trailing slash", url: "https://example.com/images/", contentType: "image/png", index: 5, want: "downloaded_image_5.png"},
		{name: "no extension", url: "https://example.com/avatar", contentType: "image/webp", index: 6, want: "downloaded_image_6.webp"},
		{name: "unknown type", url: "https://example.com/avatar", contentType: "image/x-whatever", index: 7, want: "downloaded_image_7.jpg"},
		{name: "dots only", url: "https://example.com/..%2F..", contentType: "image/png", index: 8, want: "downloaded_image_8.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FilenameFor(tt.url, tt.contentType, tt.index); got != tt.want {
				t.Fatalf("FilenameFor(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestFallbackFilename(t *testing.T) {
	tests := []struct {
		contentType string
		index       int
		want        string
	}{
		{contentType: "image/png", index: 2, want: "downloaded_image_2.png"},
		{contentType: "image/unknown-thing", index: 5, want: "downloaded_image_5.jpg"},
	}
	for _, tt := range tests {
		if got := FallbackFilename(tt.contentType, tt.index); got != tt.want {
			t.Errorf("FallbackFilename(%q, %d) = %q, want %q", tt.contentType, tt.index, got, tt.want)
		}
	}
}
