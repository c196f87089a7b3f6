package e2e

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/hdl-symex/internal/facts"
	"github.com/robert-at-pretension-io/hdl-symex/internal/runner"
)

type cli struct {
	bin  string
	dir  string
	env  []string
	root string
}

type runOutput struct {
	stdout string
	stderr string
	err    error
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	repoRoot := findRepoRoot(t)
	home := t.TempDir()
	return &cli{
		bin: buildBinary(t, repoRoot),
		dir: t.TempDir(),
		env: append(os.Environ(),
			"HOME="+home,
			"XDG_CONFIG_HOME="+filepath.Join(home, ".config"),
			"HDLSYM_TIMING_JSONL=",
			"HDLSYM_TIMING=",
		),
		root: repoRoot,
	}
}

func (c *cli) design(name string) string {
	return filepath.Join(c.root, "testdata", "designs", name)
}

func (c *cli) run(args ...string) runOutput {
	cmd := exec.Command(c.bin, args...)
	cmd.Dir = c.dir
	cmd.Env = c.env
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return runOutput{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func TestHdlsymE2E_Counterexamples(t *testing.T) {
	c := newCLI(t)

	tests := []struct {
		name   string
		args   []string
		expect []string
	}{
		{
			name:   "counter_two_cycles",
			args:   []string{"2", c.design("counter.yaml")},
			expect: []string{"Assertion violation", "top.in@0 = 5", "Elapsed time", "Solver time"},
		},
		{
			name:   "child_instance",
			args:   []string{"1", c.design("hier.yaml")},
			expect: []string{"Assertion violation", "top.x@0 = 7", "instance:  checker_0"},
		},
		{
			name:   "immediate_assert_sv",
			args:   []string{"--sv", "1", c.design("sv_assert.yaml")},
			expect: []string{"Assertion violation", "top.a@0 = 3"},
		},
		{
			name:   "immediate_assert_ignored_without_sv",
			args:   []string{"1", c.design("sv_assert.yaml")},
			expect: []string{"No assertion violation found"},
		},
		{
			name:   "underscore_flag_spelling",
			args:   []string{"--use_cache", "--cache-dir", filepath.Join(c.dir, "cache"), "2", c.design("counter.yaml")},
			expect: []string{"top.in@0 = 5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := c.run(tt.args...)
			require.NoError(t, out.err, "stderr:\n%s", out.stderr)
			for _, want := range tt.expect {
				assert.Contains(t, out.stdout, want)
			}
		})
	}
}

func TestHdlsymE2E_JSONReport(t *testing.T) {
	c := newCLI(t)

	out := c.run("--json", "1", c.design("counter.yaml"), c.design("mux.json"), "--top", "mux")
	require.NoError(t, out.err, "stderr:\n%s", out.stderr)

	var rep runner.Report
	require.NoError(t, json.Unmarshal([]byte(out.stdout), &rep), "stdout:\n%s", out.stdout)
	require.NotNil(t, rep.Result)
	assert.Equal(t, "mux", rep.Result.Top)
	assert.Nil(t, rep.Result.Counterexample)
	assert.NotEmpty(t, rep.RunID)
	assert.Len(t, rep.Files, 2)
}

func TestHdlsymE2E_Failures(t *testing.T) {
	c := newCLI(t)

	out := c.run("1", c.design("missing.yaml"))
	assert.Error(t, out.err)
	assert.Contains(t, out.stderr, "missing.yaml")

	out = c.run("1", c.design("bad_schema.yaml"))
	assert.Error(t, out.err)
	assert.Contains(t, out.stderr, "schema validation failed")

	out = c.run("zero", c.design("counter.yaml"))
	assert.Error(t, out.err)
	assert.Contains(t, out.stderr, "num_cycles")
}

func TestHdlsymE2E_FactsAndInit(t *testing.T) {
	c := newCLI(t)

	out := c.run("facts", c.design("hier.yaml"))
	require.NoError(t, out.err, "stderr:\n%s", out.stderr)
	var tables facts.Tables
	require.NoError(t, json.Unmarshal([]byte(out.stdout), &tables))
	assert.Len(t, tables.Modules, 2)
	assert.Len(t, tables.Assertions, 1)
	assert.Len(t, tables.Instances, 2)

	out = c.run("init")
	require.NoError(t, out.err, "stderr:\n%s", out.stderr)
	_, err := os.Stat(filepath.Join(c.dir, "hdlsym.json"))
	assert.NoError(t, err)
}

func TestHdlsymE2E_Graph(t *testing.T) {
	c := newCLI(t)

	out := c.run("graph", "--paths", c.design("mux.json"))
	require.NoError(t, out.err, "stderr:\n%s", out.stderr)
	assert.Contains(t, out.stdout, "mux block 0 (combinational)")
	assert.Contains(t, out.stdout, "2 paths")
	assert.Contains(t, out.stdout, "-then->")
	assert.Contains(t, out.stdout, "path 1:")

	out = c.run("graph", "--module", "nosuch", c.design("mux.json"))
	assert.Error(t, out.err)
	assert.Contains(t, out.stderr, "nosuch")
}

func buildBinary(t *testing.T, repoRoot string) string {
	t.Helper()
	binDir := t.TempDir()
	binPath := filepath.Join(binDir, "hdlsym")
	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/hdlsym")
	cmd.Dir = repoRoot
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("build hdlsym failed: %v\n%s", err, string(out))
	}
	return binPath
}

func findRepoRoot(t *testing.T) string {
	t.Helper()
	start, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	dir := start
	for {
		candidate := filepath.Join(dir, "testdata", "designs", "counter.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("repo root not found from %s", start)
		}
		dir = parent
	}
}
