package errors

import (
	"testing"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "base", false},
		{"with dash", "layer-1", false},
		{"auto node id", "Constant#3", false},
		{"with dot", "erosion.v2", false},

		{"empty", "", true},
		{"too long", string(make([]byte, 200)), true},
		{"slash", "a/b", true},
		{"leading dash", "-a", true},
		{"space", "a b", true},
		{"control char", "a\x01b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidInput) {
				t.Errorf("ValidateID(%q) code = %v", tt.input, GetCode(err))
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
		{"relative", "out/terrain.png", false},
		{"absolute", "/tmp/terrain.png", false},
		{"dots in name", "terrain..v2.png", false},

		{"empty", "", true},
		{"traversal", "out/../../etc/passwd", true},
		{"null byte", "out\x00.png", true},
		{"newline", "out\n.png", true},
		{"too long", string(make([]byte, 600)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateShape(t *testing.T) {
	if err := ValidateShape(256, 128); err != nil {
		t.Errorf("ValidateShape(256,128) = %v", err)
	}
	if err := ValidateShape(1, 128); err == nil {
		t.Error("ValidateShape(1,128) should fail")
	}
	if err := ValidateShape(1<<15, 2); err == nil {
		t.Error("ValidateShape(32768,2) should fail")
	}
}
