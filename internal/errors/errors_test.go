package errors

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{
			name:    "missing config",
			code:    CodeMissingConfig,
			wantMsg: "Configuration for deep linking is missing in route definition",
			wantCat: CategoryConfig,
		},
		{
			name:    "navigation error",
			code:    CodeNavigationRejected,
			wantMsg: "Navigation rejected by the host router",
			wantCat: CategoryNavigation,
		},
		{
			name:    "protocol error",
			code:    CodeProtocol,
			wantMsg: "Malformed client message",
			wantCat: CategoryProtocol,
		},
		{
			name:    "unknown error code",
			code:    "E999",
			wantMsg: "Unknown error",
			wantCat: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CategoryCLI, "file %q not found", "routes.yaml")
	if err.Message != `file "routes.yaml" not found` {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Category != CategoryCLI {
		t.Errorf("Category = %q, want %q", err.Category, CategoryCLI)
	}
	if err.Error() != err.Message {
		t.Errorf("Error() without code = %q", err.Error())
	}
}

func TestError_Error(t *testing.T) {
	err := New(CodeMissingConfig)
	want := "E101: Configuration for deep linking is missing in route definition"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	err = New(CodeInvalidDeclaration).WithParam("id").Wrap(fmt.Errorf("bad type"))
	want = `E102: Invalid parameter declaration (param "id"): bad type`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestIsAndUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := fmt.Errorf("activate: %w", New(CodeSourceFailed).Wrap(cause))

	if !stderrors.Is(err, New(CodeSourceFailed)) {
		t.Error("errors.Is should match on code")
	}
	if stderrors.Is(err, New(CodeMissingConfig)) {
		t.Error("errors.Is should not match a different code")
	}
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should reach the wrapped cause")
	}
	if !HasCode(err, CodeSourceFailed) {
		t.Error("HasCode should find the code through wrapping")
	}
	if HasCode(cause, CodeSourceFailed) {
		t.Error("HasCode on a plain error should be false")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, CodeSourceFailed) != nil {
		t.Error("FromError(nil) should be nil")
	}

	orig := New(CodeMissingConfig)
	if got := FromError(fmt.Errorf("wrapped: %w", orig), CodeSourceFailed); got != orig {
		t.Error("FromError should return an existing *Error unchanged")
	}

	plain := stderrors.New("disk full")
	got := FromError(plain, CodeSourceFailed)
	if got.Code != CodeSourceFailed || got.Wrapped != plain {
		t.Errorf("FromError = %+v", got)
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New(CodeInvalidDeclaration).
		WithRoute("/users/:id").
		WithParam("id").
		WithExample("params:\n  - {name: id, type: number}")

	out := err.Format()
	for _, want := range []string{
		"ERROR E102: Invalid parameter declaration",
		"route /users/:id, param id",
		"Hint: Check the name and type",
		"Example:",
		"    params:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q:\n%s", want, out)
		}
	}
}

func TestFormatCompact(t *testing.T) {
	err := New(CodeUnknownRoute).WithRoute("/nope")
	want := "/nope: E105: No route matches the requested pattern"
	if got := err.FormatCompact(); got != want {
		t.Errorf("FormatCompact() = %q, want %q", got, want)
	}
}

func TestFormatJSON(t *testing.T) {
	err := New(CodeSourceFailed).WithRoute("/a").Wrap(stderrors.New("eof"))

	var decoded map[string]string
	if jerr := json.Unmarshal([]byte(err.FormatJSON()), &decoded); jerr != nil {
		t.Fatalf("FormatJSON is not valid JSON: %v", jerr)
	}
	if decoded["code"] != CodeSourceFailed || decoded["cause"] != "eof" || decoded["route"] != "/a" {
		t.Errorf("decoded = %v", decoded)
	}
}

func TestFprintError(t *testing.T) {
	DisableColors()
	defer EnableColors()

	var buf bytes.Buffer
	FprintError(&buf, stderrors.New("plain failure"))
	if !strings.Contains(buf.String(), "ERROR: plain failure") {
		t.Errorf("plain error output = %q", buf.String())
	}

	buf.Reset()
	FprintError(&buf, New(CodeMissingConfig))
	if !strings.Contains(buf.String(), "ERROR E101") {
		t.Errorf("coded error output = %q", buf.String())
	}
}

func TestRegistry(t *testing.T) {
	codes := GetAllCodes()
	if len(codes) == 0 || codes[0] != CodeMissingConfig {
		t.Errorf("GetAllCodes() = %v", codes)
	}

	Register("E998", ErrorTemplate{Category: CategorySync, Message: "custom"})
	defer delete(registry, "E998")
	tmpl, ok := GetTemplate("E998")
	if !ok || tmpl.Message != "custom" {
		t.Errorf("GetTemplate after Register = %+v, %v", tmpl, ok)
	}
}
