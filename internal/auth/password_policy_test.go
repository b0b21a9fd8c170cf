package auth

import "testing"

func TestIsValidPassword(t *testing.T) {
	tests := []struct {
		password string
		want     bool
	}{
		{"Valid1Password!", true},
		{"short", false},
		{"NoDigits!", false},
		{"nouppercase1!", false},
		{"NOLOWERCASE1!", false},
		{"NoSymbol123", false},
		{"", false},
		{"        ", false},
		{"Aa1!Aa1!", true},
		{"Aa1!Aa1", false},
		{"Pass word1", true},
		{"Pässwört1!", true},
		{"Ab1!" + "xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx", true},
	}
	for _, tt := range tests {
		if got := IsValidPassword(tt.password); got != tt.want {
			t.Errorf("IsValidPassword(%q) = %v, want %v", tt.password, got, tt.want)
		}
	}
}
