package errors

import (
	"strings"
	"testing"
)

func TestValidateSegment(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"crate", "serde", false},
		{"dotted", "my.crate", false},
		{"nested slug", "web-programming::http-client", false},

		{"empty", "", true},
		{"too long", strings.Repeat("a", 300), true},
		{"parent dir", "foo/../bar", true},
		{"double slash", "foo//bar", true},
		{"null byte", "foo\x00bar", true},
		{"backslash", "foo\\bar", true},
		{"newline", "foo\nbar", true},
		{"carriage return", "foo\rbar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSegment("crate name", tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateSegment(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), "crate name") {
				t.Errorf("validateSegment(%q) error %q does not name the value", tt.input, err)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"https", "https://crates.io/api/v1/", false},
		{"http", "http://127.0.0.1:8787/api/v1/", false},
		{"uppercase scheme", "HTTPS://crates.io/api/v1/", false},
		{"mixed case scheme", "Http://localhost:8080/", false},

		{"empty", "", true},
		{"ftp", "ftp://example.com", true},
		{"file", "file:///etc/passwd", true},
		{"javascript", "javascript:alert(1)", true},
		{"no scheme", "crates.io", true},
		{"scheme prefix only", "httpsx://crates.io", true},
		{"malformed", "http://[::1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateCrateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "serde", false},
		{"with dash", "my-crate", false},
		{"with underscore", "my_crate", false},
		{"mixed case", "Inflector", false},

		{"empty", "", true},
		{"starts with number", "123crate", true},
		{"starts with dash", "-crate", true},
		{"with dot", "my.crate", true},
		{"with slash", "serde/derive", true},
		{"too long", "a" + strings.Repeat("b", 64), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCrateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCrateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidPackage) {
				t.Errorf("ValidateCrateName(%q) returned wrong error code: %v", tt.input, err)
			}
		})
	}
}

func TestValidateVersion(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"1.0.193", false},
		{"0.3.0-beta.1", false},
		{"1.0.0+build.5", false},

		{"", true},
		{"1.0", true},
		{"v1.0.0", true},
		{"1.0.0/../..", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateVersion(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateVersion(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateSlug(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"web-programming", false},
		{"web-programming::http-client", false},
		{"no-std", false},

		{"", true},
		{"-leading", true},
		{"has space", true},
		{"a/b", true},
		{"a::..", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateSlug(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSlug(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidInput) {
				t.Errorf("ValidateSlug(%q) code = %q, want INVALID_INPUT", tt.input, GetCode(err))
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"relative", "Cargo.toml", false},
		{"nested", "crates/core/Cargo.toml", false},
		{"absolute", "/home/me/project/Cargo.toml", false},

		{"empty", "", true},
		{"too long", strings.Repeat("a", 5000), true},
		{"null byte", "foo\x00bar", true},
		{"control char", "foo\x01bar", true},
		{"newline", "foo\nbar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidPath) {
				t.Errorf("ValidatePath(%q) returned wrong error code: %v", tt.input, err)
			}
		})
	}
}

func TestErrorCodesAreUnique(t *testing.T) {
	codes := []Code{
		ErrCodeInvalidInput,
		ErrCodeInvalidPackage,
		ErrCodeInvalidConfig,
		ErrCodeInvalidPath,
		ErrCodeNotFound,
		ErrCodeNetwork,
		ErrCodeRateLimited,
		ErrCodeDecode,
		ErrCodeInternal,
	}

	seen := make(map[Code]bool)
	for _, code := range codes {
		if seen[code] {
			t.Errorf("Duplicate error code: %s", code)
		}
		seen[code] = true
	}
}
