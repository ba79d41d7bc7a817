package config

import (
	"strings"
	"testing"
)

func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}
}

func TestExpand(t *testing.T) {
	env := map[string]string{
		"INTAKE_URL": "https://intake.example.com/upload",
		"GAME":       "space-cats",
		"EMPTY":      "",
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"set var", "url: ${INTAKE_URL}", "url: https://intake.example.com/upload"},
		{"unset var", "url: ${NOPE}", "url: "},
		{"default when unset", "level: ${NOPE:-debug}", "level: debug"},
		{"default when empty", "level: ${EMPTY:-debug}", "level: debug"},
		{"default ignored when set", "game: ${GAME:-other}", "game: space-cats"},
		{"required and set", "game: ${GAME:?set GAME}", "game: space-cats"},
		{"multiple", "${GAME}@${INTAKE_URL}", "space-cats@https://intake.example.com/upload"},
		{"no vars", "no variables here", "no variables here"},
		{"bare dollar untouched", "price: $5 and $GAME", "price: $5 and $GAME"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expand(tt.input, mapLookup(env))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExpand_RequiredMissing(t *testing.T) {
	_, err := Expand("url: ${INTAKE_URL:?intake endpoint}\ntoken: ${TOKEN:?}\n", mapLookup(map[string]string{"TOKEN": ""}))
	if err == nil {
		t.Fatal("expected error for missing required variables")
	}
	for _, want := range []string{"INTAKE_URL: intake endpoint", "TOKEN is required"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should contain %q", err.Error(), want)
		}
	}
}

func TestExpandEnv_NestedInYAML(t *testing.T) {
	t.Setenv("SHIPYARD_TEST_INTAKE", "https://intake.example.com/upload")
	t.Setenv("SHIPYARD_TEST_TOKEN", "secret")

	input := `upload:
  url: ${SHIPYARD_TEST_INTAKE}
notify:
  headers:
    Authorization: Bearer ${SHIPYARD_TEST_TOKEN}`

	got, err := ExpandEnv(input)
	if err != nil {
		t.Fatal(err)
	}
	want := `upload:
  url: https://intake.example.com/upload
notify:
  headers:
    Authorization: Bearer secret`

	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}
