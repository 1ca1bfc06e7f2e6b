package room

import (
	"errors"
	"strings"
	"testing"

	"github.com/viral32111/LiveChat/domain/chat"
)

func TestValidateRoomName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "Lounge", false},
		{"single character", "x", false},
		{"punctuation", "Games & Stuff (18+) [EU]: #1!", false},
		{"pound sign", "£5 deals", false},
		{"maximum length", strings.Repeat("r", 50), false},
		{"empty", "", true},
		{"too long", strings.Repeat("r", 51), true},
		{"tab", "a\tb", true},
		{"newline", "a\nb", true},
		{"quote", `say "hi"`, true},
		{"slash", "a/b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRoomName(tt.input)
			if tt.wantErr != (err != nil) {
				t.Errorf("ValidateRoomName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, chat.ErrValidation) {
				t.Errorf("ValidateRoomName(%q) error kind = %v, want validation", tt.input, err)
			}
		})
	}
}

func TestValidateJoinCode(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"AABBCC", false},
		{"aabbcc", false},
		{"AbCdEf", false},
		{"ABCDE", true},
		{"ABCDEFG", true},
		{"ABC123", true},
		{"", true},
		{"ABC DE", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateJoinCode(tt.input)
			if tt.wantErr && !errors.Is(err, chat.ErrJoinCodeInvalid) {
				t.Errorf("ValidateJoinCode(%q) error = %v, want ErrJoinCodeInvalid", tt.input, err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateJoinCode(%q) unexpected error: %v", tt.input, err)
			}
		})
	}
}

func TestValidateContent(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"single character", "a", false},
		{"maximum length", strings.Repeat("a", MaxContentLength), false},
		{"multibyte at maximum", strings.Repeat("é", MaxContentLength), false},
		{"empty", "", true},
		{"too long", strings.Repeat("a", MaxContentLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateContent(tt.input)
			if tt.wantErr != (err != nil) {
				t.Errorf("ValidateContent() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateAttachments(t *testing.T) {
	valid := Attachment{Type: "image/png", Path: "/attachments/x.png"}

	tests := []struct {
		name        string
		attachments []Attachment
		wantErr     bool
	}{
		{"none", nil, false},
		{"one", []Attachment{valid}, false},
		{"maximum", []Attachment{valid, valid, valid, valid, valid}, false},
		{"too many", []Attachment{valid, valid, valid, valid, valid, valid}, true},
		{"missing type", []Attachment{{Path: "/attachments/x.png"}}, true},
		{"missing path", []Attachment{{Type: "image/png"}}, true},
		{"external url", []Attachment{{Type: "image/png", Path: "https://evil.example/x.png"}}, true},
		{"relative path", []Attachment{{Type: "image/png", Path: "attachments/x.png"}}, true},
		{"prefix only", []Attachment{{Type: "image/png", Path: AttachmentPathPrefix}}, true},
		{"escapes prefix", []Attachment{{Type: "image/png", Path: "/attachments/../api/name"}}, true},
		{"query string", []Attachment{{Type: "image/png", Path: "/attachments/x.png?redirect=1"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAttachments(tt.attachments)
			if tt.wantErr && !errors.Is(err, chat.ErrAttachmentsInvalid) {
				t.Errorf("ValidateAttachments() error = %v, want ErrAttachmentsInvalid", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateAttachments() unexpected error: %v", err)
			}
		})
	}
}

func TestJoinCodeGenerator(t *testing.T) {
	gen, err := NewJoinCodeGenerator()
	if err != nil {
		t.Fatalf("NewJoinCodeGenerator() error = %v", err)
	}

	for i := 0; i < 100; i++ {
		code := gen()
		if err := ValidateJoinCode(code); err != nil {
			t.Fatalf("generated code %q is invalid: %v", code, err)
		}
	}

	if got := NormalizeJoinCode("aBcDeF"); got != "ABCDEF" {
		t.Errorf("NormalizeJoinCode() = %q, want %q", got, "ABCDEF")
	}
}
