package fontcss

import (
	"strings"
	"testing"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "protocol_relative",
			raw:  "//fonts.googleapis.com/css?family=Roboto",
			want: "https://fonts.googleapis.com/css?family=Roboto",
		},
		{
			name: "already_absolute",
			raw:  "https://fonts.googleapis.com/css?family=Roboto",
			want: "https://fonts.googleapis.com/css?family=Roboto",
		},
		{
			name: "numeric_entity_ampersand",
			raw:  "https://fonts.googleapis.com/css?family=Foo&#038;display=swap",
			want: "https://fonts.googleapis.com/css?family=Foo&display=swap",
		},
		{
			name: "named_entity_ampersand",
			raw:  "https://fonts.googleapis.com/css?family=Foo&amp;display=swap",
			want: "https://fonts.googleapis.com/css?family=Foo&display=swap",
		},
		{
			name: "root_relative",
			raw:  "/css?family=Foo&#038;display=swap",
			want: "https:/css?family=Foo&display=swap",
		},
		{
			name: "template_residue",
			raw:  "https://fonts.googleapis.com/css?family=Lato[]}",
			want: "https://fonts.googleapis.com/css?family=Lato",
		},
		{
			name: "whitespace",
			raw:  " https://fonts.googleapis.com/css?family=Open+Sans:400,\n700 ",
			want: "https://fonts.googleapis.com/css?family=Open+Sans:400,700",
		},
		{
			name: "empty",
			raw:  "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeURL(tt.raw); got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeURL_Idempotent(t *testing.T) {
	inputs := []string{
		"//fonts.googleapis.com/css?family=Roboto",
		" //fonts.googleapis.com/css?family=Roboto",
		"https://fonts.googleapis.com/css?family=A&amp;#038;display=swap",
		"https://fonts.googleapis.com/css?family=A[]}[]}",
		"https://fonts.googleapis.com/css?family=A[]} ",
		"/css?family=Foo&#038;display=swap",
		"//",
		"/",
	}

	for _, in := range inputs {
		once := NormalizeURL(in)
		twice := NormalizeURL(once)
		if once != twice {
			t.Errorf("NormalizeURL not idempotent for %q: %q then %q", in, once, twice)
		}
		if strings.ContainsAny(once, " \t\n") {
			t.Errorf("NormalizeURL(%q) = %q still contains whitespace", in, once)
		}
	}
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"root_relative", NormalizeURL("/css?family=Foo&#038;display=swap"), "https://fonts.googleapis.com/css?family=Foo&display=swap"},
		{"absolute_untouched", "https://fonts.googleapis.com/css2?family=Inter", "https://fonts.googleapis.com/css2?family=Inter"},
		{"other_host_untouched", "https://example.com/css", "https://example.com/css"},
		{"http_untouched", "http:/css", "http:/css"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveURL(tt.in); got != tt.want {
				t.Errorf("resolveURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsStylesheetURL(t *testing.T) {
	tests := []struct {
		href string
		want bool
	}{
		{"https://fonts.googleapis.com/css?family=Roboto", true},
		{"//fonts.googleapis.com/css2?family=Inter", true},
		{"https://example.com/style.css", false},
		{"fonts.googleapis.com/css", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsStylesheetURL(tt.href); got != tt.want {
			t.Errorf("IsStylesheetURL(%q) = %v, want %v", tt.href, got, tt.want)
		}
	}
}

func TestRewriteFontURLs(t *testing.T) {
	tests := []struct {
		name string
		css  string
		want string
	}{
		{
			name: "https",
			css:  "src: url(https://fonts.gstatic.com/s/roboto/v30/a.woff2) format('woff2');",
			want: "src: url(/fonts.gstatic.com/s/roboto/v30/a.woff2) format('woff2');",
		},
		{
			name: "http",
			css:  "url(http://fonts.gstatic.com/s/a.woff)",
			want: "url(/fonts.gstatic.com/s/a.woff)",
		},
		{
			name: "protocol_relative",
			css:  "url(//fonts.gstatic.com/s/a.ttf)",
			want: "url(/fonts.gstatic.com/s/a.ttf)",
		},
		{
			name: "multiple",
			css:  "url(https://fonts.gstatic.com/a) url(https://fonts.gstatic.com/b)",
			want: "url(/fonts.gstatic.com/a) url(/fonts.gstatic.com/b)",
		},
		{
			name: "other_hosts_untouched",
			css:  "url(https://example.com/a.woff2)",
			want: "url(https://example.com/a.woff2)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RewriteFontURLs(tt.css)
			if got != tt.want {
				t.Errorf("RewriteFontURLs() = %q, want %q", got, tt.want)
			}
			if again := RewriteFontURLs(got); again != got {
				t.Errorf("RewriteFontURLs not idempotent: %q", again)
			}
			if strings.Contains(got, "//fonts.gstatic.com/") {
				t.Errorf("absolute font URL survived: %q", got)
			}
		})
	}
}
