package metadata

import (
	"encoding/json"
	"testing"
)

func TestNormalizeLanguage(t *testing.T) {
	tests := map[string]string{
		"":      "en-US",
		"en":    "en-US",
		"en_US": "en-US",
		"pt-br": "pt-BR",
		"fr-FR": "fr-FR",
		"es":    "es-US",
		"x":     "en-US",
	}
	for input, expect := range tests {
		if got := normalizeLanguage(input); got != expect {
			t.Fatalf("normalizeLanguage(%q) = %q, want %q", input, got, expect)
		}
	}
}

func TestParseYear(t *testing.T) {
	if year := parseYear("2024-05-01"); year != 2024 {
		t.Fatalf("expected 2024, got %d", year)
	}
	if year := parseYear(""); year != 0 {
		t.Fatalf("expected 0 for empty date, got %d", year)
	}
	if year := parseYear("199"); year != 0 {
		t.Fatalf("expected 0 for invalid date, got %d", year)
	}
}

func TestDiscoverItemRecordsFieldKeys(t *testing.T) {
	payload := `{"id": 550, "title": "Fight Club", "release_date": "1999-10-15", "vote_count": 25000, "adult": false}`

	var item discoverItem
	if err := json.Unmarshal([]byte(payload), &item); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if item.ID != 550 || item.Title != "Fight Club" {
		t.Fatalf("unexpected item: %+v", item)
	}

	want := []string{"adult", "id", "release_date", "title", "vote_count"}
	if len(item.FieldKeys) != len(want) {
		t.Fatalf("expected %d field keys, got %v", len(want), item.FieldKeys)
	}
	for i, k := range want {
		if item.FieldKeys[i] != k {
			t.Fatalf("field keys not sorted as expected: %v", item.FieldKeys)
		}
	}
}
