package embedding

import "testing"

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		name  string
		label string
		want  string
	}{
		{"exact match", "Funding", "Funding"},
		{"case insensitive", "funding", "Funding"},
		{"trailing period", "Impact.", "Impact"},
		{"quoted", `"Governance"`, "Governance"},
		{"whitespace", "  Community ", "Community"},
		{"unknown", "Philosophy", DefaultCategory},
		{"empty", "", DefaultCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeCategory(tt.label); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestClassifyPrompt_ListsAllCategories(t *testing.T) {
	prompt := classifyPrompt()
	for _, category := range Categories {
		if !containsSubstring(prompt, category) {
			t.Errorf("prompt missing category %q", category)
		}
	}
}

func containsSubstring(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
