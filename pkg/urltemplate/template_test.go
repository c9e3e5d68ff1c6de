package urltemplate

import (
	"errors"
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		pattern string
		params  []string
		str     string
	}{
		{"users/:id/detail", []string{"id"}, "/users/:id/detail"},
		{"/users/{id}/detail", []string{"id"}, "/users/:id/detail"},
		{"/users/{id:[0-9]+}/detail", []string{"id"}, "/users/:id/detail"},
		{"/orgs/:org/users/:id", []string{"org", "id"}, "/orgs/:org/users/:id"},
		{"/docs/*slug", []string{"slug"}, "/docs/*slug"},
		{"/about", nil, "/about"},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			tmpl, err := Parse(tt.pattern)
			if err != nil {
				t.Fatalf("Parse error: %v", err)
			}
			if got := tmpl.Params(); !reflect.DeepEqual(got, tt.params) {
				t.Errorf("Params() = %v, want %v", got, tt.params)
			}
			if got := tmpl.String(); got != tt.str {
				t.Errorf("String() = %q, want %q", got, tt.str)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	for _, p := range []string{"", "/", "//"} {
		if _, err := Parse(p); !errors.Is(err, ErrNoTemplate) {
			t.Errorf("Parse(%q) error = %v, want ErrNoTemplate", p, err)
		}
	}
}

func TestMustParsePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustParse(\"\") should panic")
		}
	}()
	MustParse("")
}

func TestJoinPatterns(t *testing.T) {
	got := JoinPatterns("", "/users", "", ":id/", "detail")
	if got != "users/:id/detail" {
		t.Errorf("JoinPatterns = %q", got)
	}
	if got := JoinPatterns("", ""); got != "" {
		t.Errorf("JoinPatterns of empties = %q, want empty", got)
	}
}

func TestReplacePathParam(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		template string
		param    string
		value    string
		want     string
	}{
		{"Basic", "users/42/detail", "users/:id/detail", "id", "99", "users/99/detail"},
		{"LeadingSlash", "/users/42/detail", "users/:id/detail", "id", "99", "/users/99/detail"},
		{"TrailingSlash", "/users/42/", "/users/:id", "id", "7", "/users/7/"},
		{"ChiSyntax", "/users/42/detail", "/users/{id}/detail", "id", "99", "/users/99/detail"},
		{"OtherParamUntouched", "/orgs/acme/users/42", "/orgs/:org/users/:id", "id", "1", "/orgs/acme/users/1"},
		{"FirstOfTwo", "/orgs/acme/users/42", "/orgs/:org/users/:id", "org", "globex", "/orgs/globex/users/42"},
		{"ExtraLiveSegments", "/users/42/detail/tab", "/users/:id/detail", "id", "5", "/users/5/detail/tab"},
		{"Escaped", "/files/a", "/files/:name", "name", "a b/c", "/files/a%20b%2Fc"},
		{"StaticCopiedFromLive", "/Users/42", "/users/:id", "id", "3", "/Users/3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReplacePathParam(tt.path, MustParse(tt.template), tt.param, tt.value)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReplacePathParamErrors(t *testing.T) {
	_, err := ReplacePathParam("/users/42", nil, "id", "1")
	if !errors.Is(err, ErrNoTemplate) {
		t.Errorf("nil template: err = %v, want ErrNoTemplate", err)
	}

	_, err = ReplacePathParam("/users", MustParse("/users/:id"), "id", "1")
	if !errors.Is(err, ErrSegmentMismatch) {
		t.Errorf("short path: err = %v, want ErrSegmentMismatch", err)
	}

	path, err := ReplacePathParam("/users/42", MustParse("/users/:id"), "slug", "1")
	if !errors.Is(err, ErrUnknownParam) {
		t.Errorf("unknown param: err = %v, want ErrUnknownParam", err)
	}
	if path != "/users/42" {
		t.Errorf("unknown param should return the path unchanged, got %q", path)
	}
}

func TestExtractParams(t *testing.T) {
	params, err := ExtractParams("/users/42/detail", MustParse("/users/:id/detail"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params["id"] != "42" {
		t.Errorf("id = %q, want 42", params["id"])
	}

	params, err = ExtractParams("/docs/a/b/c", MustParse("/docs/*slug"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params["slug"] != "a/b/c" {
		t.Errorf("slug = %q, want a/b/c", params["slug"])
	}

	params, err = ExtractParams("/files/a%20b", MustParse("/files/:name"))
	if err != nil || params["name"] != "a b" {
		t.Errorf("escaped: got (%v, %v)", params, err)
	}

	if _, err := ExtractParams("/posts/42", MustParse("/users/:id")); !errors.Is(err, ErrSegmentMismatch) {
		t.Errorf("static mismatch: err = %v", err)
	}
	if _, err := ExtractParams("/users", MustParse("/users/:id")); !errors.Is(err, ErrSegmentMismatch) {
		t.Errorf("short path: err = %v", err)
	}
}

// Replacing a parameter and reading it back yields the new value while other
// parameters keep theirs.
func TestReplaceThenExtract(t *testing.T) {
	tmpl := MustParse("/orgs/:org/users/:id")
	path, err := ReplacePathParam("/orgs/acme/users/42", tmpl, "id", "x y")
	if err != nil {
		t.Fatal(err)
	}
	params, err := ExtractParams(path, tmpl)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"org": "acme", "id": "x y"}
	if !reflect.DeepEqual(params, want) {
		t.Errorf("params = %v, want %v", params, want)
	}
}
