package commands

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewGenerateCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestGenerateCommandJSON(t *testing.T) {
	out, err := runCommand(t, "Anna Schmidt", "-n", "5", "--seed", "42", "--dob", "1985-03-12", "--json")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var results []generateResult
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("unmarshal output: %v\noutput: %s", err, out)
	}

	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	res := results[0]
	if res.Seed != "Anna Schmidt" {
		t.Errorf("Seed = %q, want Anna Schmidt", res.Seed)
	}
	if res.Script != "latin" {
		t.Errorf("Script = %q, want latin", res.Script)
	}
	if len(res.Names) != 5 {
		t.Errorf("names = %d, want 5", len(res.Names))
	}
	if len(res.DOBs) != 5 {
		t.Errorf("dobs = %d, want 5", len(res.DOBs))
	}
	if got := res.RuleCount + res.FreeCount + res.FallbackCount; got != 5 {
		t.Errorf("counts sum to %d, want 5", got)
	}
}

func TestGenerateCommandMultipleSeeds(t *testing.T) {
	out, err := runCommand(t, "Anna Schmidt", "Ivan Petrov", "-n", "3", "--seed", "7", "--json")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var results []generateResult
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Seed != "Anna Schmidt" || results[1].Seed != "Ivan Petrov" {
		t.Errorf("seeds = %q, %q, want argument order", results[0].Seed, results[1].Seed)
	}
	for i, res := range results {
		if len(res.Names) != 3 {
			t.Errorf("result %d names = %d, want 3", i, len(res.Names))
		}
	}
}

func TestGenerateCommandDeterministic(t *testing.T) {
	first, err := runCommand(t, "Anna Schmidt", "-n", "6", "--seed", "42", "--json")
	if err != nil {
		t.Fatalf("first Execute() error = %v", err)
	}
	second, err := runCommand(t, "Anna Schmidt", "-n", "6", "--seed", "42", "--json")
	if err != nil {
		t.Fatalf("second Execute() error = %v", err)
	}

	if first != second {
		t.Errorf("same seed produced different output:\n%s\n---\n%s", first, second)
	}
}

func TestGenerateCommandText(t *testing.T) {
	out, err := runCommand(t, "Anna Schmidt", "-n", "4", "--seed", "42")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if !strings.Contains(out, "Anna Schmidt (latin): 4 variations") {
		t.Errorf("missing header line, got:\n%s", out)
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	// Header plus one line per variation.
	if len(lines) != 5 {
		t.Errorf("lines = %d, want 5:\n%s", len(lines), out)
	}
}

func TestGenerateCommandRequiresName(t *testing.T) {
	cmd := NewGenerateCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err == nil {
		t.Error("expected an error when no seed names are given")
	}
}

func TestRulesCommand(t *testing.T) {
	cmd := NewRulesCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	text := out.String()
	if !strings.Contains(text, "replace_vowels") {
		t.Errorf("catalog output missing replace_vowels:\n%s", text)
	}
	if !strings.Contains(text, "synonyms:") {
		t.Errorf("catalog output missing synonyms:\n%s", text)
	}
}

func TestRulesCommandJSON(t *testing.T) {
	cmd := NewRulesCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--json"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var catalog []struct {
		Rule        string   `json:"rule"`
		Description string   `json:"description"`
		Synonyms    []string `json:"synonyms"`
	}
	if err := json.Unmarshal(out.Bytes(), &catalog); err != nil {
		t.Fatalf("unmarshal catalog: %v", err)
	}
	if len(catalog) == 0 {
		t.Fatal("expected a non-empty catalog")
	}
	for _, entry := range catalog {
		if entry.Rule == "" || entry.Description == "" {
			t.Errorf("entry %+v missing rule or description", entry)
		}
	}
}
