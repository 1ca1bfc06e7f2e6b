package guest

import (
	"errors"
	"strings"
	"testing"

	"github.com/viral32111/LiveChat/domain/chat"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"minimum length", "ab", false},
		{"maximum length", strings.Repeat("a", 30), false},
		{"digits and underscore", "guest_42", false},
		{"mixed case", "JohnDoe", false},
		{"too short", "a", true},
		{"empty", "", true},
		{"too long", strings.Repeat("a", 31), true},
		{"space", "john doe", true},
		{"hyphen", "john-doe", true},
		{"unicode letter", "jöhn", true},
		{"trailing newline", "john\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.wantErr {
				if !errors.Is(err, chat.ErrNameInvalid) {
					t.Errorf("ValidateName(%q) error = %v, want ErrNameInvalid", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Errorf("ValidateName(%q) unexpected error: %v", tt.input, err)
			}
		})
	}
}
