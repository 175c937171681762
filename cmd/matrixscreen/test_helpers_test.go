package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"matrixscreen/internal/testsupport"
)

// stubFiji imitates the Fiji launcher: it reads the macro passed with
// -macro and creates the file named in its saveAs call.
const stubFiji = `#!/bin/sh
macro="$4"
out=$(sed -n 's/^saveAs("PNG", "\(.*\)");$/\1/p' "$macro")
printf 'png' > "$out"
`

type cliTestEnv struct {
	root       string
	outputDir  string
	configPath string
	fijiPath   string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("FIJI_BINARY", "")

	env := &cliTestEnv{
		root:       filepath.Join(base, "experiment"),
		outputDir:  filepath.Join(base, "output"),
		configPath: filepath.Join(base, "config.toml"),
		fijiPath:   filepath.Join(base, "bin", "ImageJ-stub"),
	}
	if err := os.MkdirAll(filepath.Dir(env.fijiPath), 0o755); err != nil {
		t.Fatalf("mkdir bin: %v", err)
	}
	if err := os.WriteFile(env.fijiPath, []byte(stubFiji), 0o755); err != nil {
		t.Fatalf("write fiji stub: %v", err)
	}

	content := fmt.Sprintf(`[paths]
log_dir = %q
output_dir = %q

[stitch]
fiji_binary = %q
tile_width = 100
tile_height = 100
overlap = 0.1
timeout_seconds = 30

[logging]
level = "error"
`, filepath.Join(base, "logs"), env.outputDir, env.fijiPath)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

// writeGrid writes a 2x1 field grid with two channels for well (0, 0) and
// a single field for well (1, 0), all on slide 0.
func (e *cliTestEnv) writeGrid(t *testing.T) {
	t.Helper()
	var rel []string
	for x := range 2 {
		for c := range 2 {
			rel = append(rel, testsupport.ImagePath(testsupport.Coord{X: x, C: c}))
		}
	}
	rel = append(rel, testsupport.ImagePath(testsupport.Coord{U: 1}))
	testsupport.WriteExperiment(t, e.root, rel...)
	testsupport.WriteScanningTemplate(t, e.root)
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func runJSON(t *testing.T, env *cliTestEnv, v any, args ...string) {
	t.Helper()
	out, _, err := runCLI(t, append([]string{"--json"}, args...), env.configPath)
	if err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("decode %v output: %v\n%s", args, err, out)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
