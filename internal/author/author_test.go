package author

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "already clean", input: "John Doe", want: "John Doe"},
		{name: "leading and trailing spaces", input: "  John Doe  ", want: "John Doe"},
		{name: "interior run of spaces", input: "John    Doe", want: "John Doe"},
		{name: "tabs and newlines", input: "John\tDoe\nJr", want: "John Doe Jr"},
		{name: "empty", input: "", want: ""},
		{name: "only whitespace", input: " \t\n ", want: ""},
		{name: "single token", input: " Madonna ", want: "Madonna"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCanonicalKey(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		same bool
	}{
		{name: "case variants collide", a: "John Doe", b: "JOHN DOE", same: true},
		{name: "whitespace variants collide", a: "John  Doe", b: " John Doe ", same: true},
		{name: "different names differ", a: "John Doe", b: "Jane Doe", same: false},
		{name: "mixed case and whitespace", a: "john\tdoe", b: "John Doe", same: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanonicalKey(tt.a) == CanonicalKey(tt.b)
			if got != tt.same {
				t.Errorf("CanonicalKey(%q) == CanonicalKey(%q) = %v, want %v",
					tt.a, tt.b, got, tt.same)
			}
		})
	}
}
