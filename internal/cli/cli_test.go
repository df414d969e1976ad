package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/spf13/cobra"

	"github.com/me/cpusim/internal/config"
	"github.com/me/cpusim/internal/logging"
	"github.com/me/cpusim/internal/report"
	"github.com/me/cpusim/internal/server"
	"github.com/me/cpusim/internal/store"
	"github.com/me/cpusim/pkg/model"
)

const testWorkload = "# id:arrival:service:priority\n1:0:5:0\n2:1:3:2\n\n3:4:6:1\n"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// parseSimFlags binds the shared simulation flags to a bare command and
// parses args.
func parseSimFlags(t *testing.T, args ...string) (*cobra.Command, *simFlags) {
	t.Helper()
	logger = logging.Discard()
	var f simFlags
	cmd := &cobra.Command{Use: "test"}
	addSimFlags(cmd, &f, true)
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatal(err)
	}
	return cmd, &f
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	wl := writeFile(t, dir, "jobs.txt", testWorkload)

	stdout, _, err := execute(t, "run", wl, "--outdir", dir, "-A")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if n := strings.Count(stdout, "* exited"); n != 3 {
		t.Errorf("got %d exit lines, want 3:\n%s", n, stdout)
	}
	if strings.Contains(stdout, "still running") {
		t.Error("non-exit records printed without -v")
	}
	if !strings.HasSuffix(stdout, "All processes completed !\n") {
		t.Errorf("missing completion banner:\n%s", stdout)
	}

	f, err := os.Open(filepath.Join(dir, report.FileName(model.PolicyAggressive)))
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 || rows[0][0] != "ProcessID" {
		t.Errorf("unexpected report %v", rows)
	}
	// Rows follow load order.
	for i, want := range []string{"1", "2", "3"} {
		if rows[i+1][0] != want {
			t.Errorf("row %d id = %s, want %s", i+1, rows[i+1][0], want)
		}
	}
}

func TestRunCommand_Verbose(t *testing.T) {
	dir := t.TempDir()
	wl := writeFile(t, dir, "jobs.txt", testWorkload)

	stdout, _, err := execute(t, "run", wl, "--outdir", dir, "-v", "--seed", "11")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) < 2 {
		t.Fatalf("output:\n%s", stdout)
	}
	// One record per tick, numbered from zero, then the banner.
	for i, line := range lines[:len(lines)-1] {
		if !strings.HasPrefix(line, strconv.Itoa(i)+":") {
			t.Fatalf("line %d = %q", i, line)
		}
	}
}

func TestRunCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	wl := writeFile(t, dir, "jobs.txt", testWorkload)
	bad := writeFile(t, dir, "bad.txt", "1:0:5:0\n2:x:3:0\n")

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing workload", []string{"run"}, "workload path is required"},
		{"no such file", []string{"run", filepath.Join(dir, "nope.txt")}, "nope.txt"},
		{"parse error", []string{"run", bad, "--outdir", dir}, "line 2"},
		{"bad policy", []string{"run", wl, "--policy", "fifo"}, "policy"},
		{"two shorthands", []string{"run", wl, "-N", "-S"}, "only one of"},
		{"bad chance", []string{"run", wl, "--io-request-chance", "0"}, "io_request_chance"},
		{"short timeslices", []string{"run", wl, "--timeslice", "1,2,3"}, "timeslices"},
		{"tick limit", []string{"run", wl, "--max-ticks", "2", "--outdir", dir}, "tick limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}

	if _, err := os.Stat(filepath.Join(dir, report.FileName(model.PolicyNonAggressive))); !os.IsNotExist(err) {
		t.Error("no report should be written for a failed run")
	}
}

func TestResolve_Precedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "sim.yaml", `
policy: sjf
seed: 5
io_request_chance: 7
timeslice_expr: "level + 1"
workload: from-config.txt
`)

	cmd, f := parseSimFlags(t, "--config", cfgPath, "--seed", "9")
	cfg, err := f.resolve(cmd)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Policy != "sjf" || cfg.IORequestChance != 7 {
		t.Errorf("config file not applied: %+v", cfg)
	}
	if cfg.Seed != 9 {
		t.Errorf("Seed = %d, flag should win", cfg.Seed)
	}
	if cfg.IOCompletionChance != 4 {
		t.Errorf("IOCompletionChance = %d, default should survive", cfg.IOCompletionChance)
	}
	if cfg.TimesliceExpr != "level + 1" {
		t.Errorf("TimesliceExpr = %q", cfg.TimesliceExpr)
	}

	if err := workloadPath(&cfg, nil); err != nil || cfg.Workload != "from-config.txt" {
		t.Errorf("workload = %q, err = %v", cfg.Workload, err)
	}
	if err := workloadPath(&cfg, []string{"arg.txt"}); err != nil || cfg.Workload != "arg.txt" {
		t.Errorf("argument should win, got %q", cfg.Workload)
	}
}

func TestResolve_TimesliceFlagClearsExpr(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "sim.yaml", "timeslice_expr: \"1 << level\"\n")

	cmd, f := parseSimFlags(t, "--config", cfgPath, "--timeslice", "3,3,3,3,3,3,3,3")
	cfg, err := f.resolve(cmd)
	if err != nil {
		t.Fatal(err)
	}
	q, err := cfg.Quanta()
	if err != nil {
		t.Fatal(err)
	}
	for level, v := range q {
		if v != 3 {
			t.Errorf("level %d = %d, want 3", level, v)
		}
	}
}

func TestResolve_PolicyShorthands(t *testing.T) {
	tests := []struct {
		args    []string
		want    string
		wantErr bool
	}{
		{nil, "non-aggressive", false},
		{[]string{"-A"}, "aggressive", false},
		{[]string{"-S"}, "sjf", false},
		{[]string{"--policy", "a", "-A"}, "aggressive", false},
		{[]string{"--policy", "sjf", "-N"}, "", true},
		{[]string{"-A", "-S"}, "", true},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			cmd, f := parseSimFlags(t, tt.args...)
			cfg, err := f.resolve(cmd)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if cfg.Policy != tt.want {
				t.Errorf("Policy = %q, want %q", cfg.Policy, tt.want)
			}
		})
	}
}

func TestCompareCommand(t *testing.T) {
	dir := t.TempDir()
	wl := writeFile(t, dir, "jobs.txt", testWorkload)
	out := filepath.Join(dir, "reports")

	stdout, _, err := execute(t, "compare", wl, "--outdir", out)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range model.Policies {
		if !strings.Contains(stdout, p.Title()) {
			t.Errorf("missing %s in:\n%s", p.Title(), stdout)
		}
		if _, err := os.Stat(filepath.Join(out, report.FileName(p))); err != nil {
			t.Errorf("report for %s: %v", p, err)
		}
	}
	if !strings.Contains(stdout, "3 processes, seed 1") {
		t.Errorf("missing header:\n%s", stdout)
	}
}

func TestRunsCommands(t *testing.T) {
	dir := t.TempDir()
	wl := writeFile(t, dir, "jobs.txt", testWorkload)
	db := filepath.Join(dir, "history", "runs.db")

	_, stderr, err := execute(t, "run", wl, "--outdir", dir, "--db", db, "-S")
	if err != nil {
		t.Fatal(err)
	}
	id := regexp.MustCompile(`run_[0-9a-f-]+`).FindString(stderr)
	if id == "" {
		t.Fatalf("no run id in stderr:\n%s", stderr)
	}

	stdout, _, err := execute(t, "runs", "list", "--db", db)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, id) || !strings.Contains(stdout, "sjf") {
		t.Errorf("list output:\n%s", stdout)
	}

	stdout, _, err = execute(t, "runs", "list", "--db", db, "--policy", "aggressive")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "No runs found.") {
		t.Errorf("filtered list output:\n%s", stdout)
	}

	stdout, _, err = execute(t, "runs", "show", id, "--db", db)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"PreEmptiveShortestJobFirst", "TURNAROUND", "avg turnaround"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("show output missing %q:\n%s", want, stdout)
		}
	}

	if _, _, err := execute(t, "runs", "delete", id, "--db", db); err != nil {
		t.Fatal(err)
	}
	if _, _, err := execute(t, "runs", "show", id, "--db", db); err == nil {
		t.Error("show after delete should fail")
	}
	_, _, err = execute(t, "runs", "delete", id, "--db", db)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second delete: %v", err)
	}
}

// startTestServer starts a server with an in-memory SQLite store and returns the URL.
func startTestServer(t *testing.T) string {
	t.Helper()
	srvLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.NewSQLiteStore(":memory:", srvLogger)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ts := httptest.NewServer(server.New(config.DefaultServerConfig(), st, srvLogger).Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func TestSubmitCommand_Server(t *testing.T) {
	url := startTestServer(t)
	dir := t.TempDir()
	wl := writeFile(t, dir, "jobs.txt", testWorkload)

	stdout, _, err := execute(t, "submit", wl, "--server", url, "-N", "--timeslice-expr", "2")
	if err != nil {
		t.Fatal(err)
	}
	id := regexp.MustCompile(`run_[0-9a-f-]+`).FindString(stdout)
	if id == "" {
		t.Fatalf("no run id:\n%s", stdout)
	}
	if !strings.Contains(stdout, "NonAggressivePreEmptive") {
		t.Errorf("missing summary:\n%s", stdout)
	}

	run, err := NewClient(url, nil).GetRun(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if len(run.Stats) != 3 || run.Params.Timeslices[7] != 2 {
		t.Errorf("stored run %+v", run.Run)
	}
}

func TestSubmitCommand_Mocked(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	dir := t.TempDir()
	wl := writeFile(t, dir, "jobs.txt", testWorkload)

	var got model.CreateRunRequest
	httpmock.RegisterResponder("POST", "http://sim.test/api/v1/runs",
		func(req *http.Request) (*http.Response, error) {
			if err := json.NewDecoder(req.Body).Decode(&got); err != nil {
				return httpmock.NewStringResponse(400, err.Error()), nil
			}
			return httpmock.NewJsonResponse(201, map[string]any{
				"status": "ok",
				"data": map[string]any{
					"id":      "run_mocked",
					"params":  map[string]any{"policy": "sjf"},
					"summary": map[string]any{"policy": "sjf", "processes": 3, "makespan": 20},
				},
			})
		})

	t.Setenv("CPUSIM_SERVER", "http://sim.test/")
	stdout, _, err := execute(t, "submit", wl, "-S", "--seed", "42", "--io-completion-chance", "6")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "run_mocked") {
		t.Errorf("stdout:\n%s", stdout)
	}
	if got.Policy != "sjf" || got.Seed == nil || *got.Seed != 42 || got.IOCompletionChance != 6 {
		t.Errorf("request = %+v", got)
	}
	if got.Workload != testWorkload || len(got.Timeslices) != 8 {
		t.Errorf("workload/timeslices not sent: %+v", got)
	}
	if n := httpmock.GetTotalCallCount(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestClient_ErrorEnvelope(t *testing.T) {
	c := NewClient("http://sim.test", nil)
	httpmock.ActivateNonDefault(c.HTTPClient)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "http://sim.test/api/v1/runs/run_x",
		httpmock.NewJsonResponderOrPanic(404, map[string]any{
			"status": "error",
			"error":  map[string]any{"code": "NOT_FOUND", "message": "run 'run_x' not found"},
		}))
	httpmock.RegisterResponder("POST", "http://sim.test/api/v1/runs",
		httpmock.NewErrorResponder(errors.New("connection refused")))

	_, err := c.GetRun(context.Background(), "run_x")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrNotFound {
		t.Errorf("expected NOT_FOUND APIError, got %v", err)
	}

	_, err = c.CreateRun(context.Background(), model.CreateRunRequest{Workload: "1:0:1:0"})
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("expected transport error, got %v", err)
	}
}

func TestClient_NonEnvelope(t *testing.T) {
	c := NewClient("http://sim.test", nil)
	httpmock.ActivateNonDefault(c.HTTPClient)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "http://sim.test/api/v1/runs/run_y",
		httpmock.NewStringResponder(502, "<html>bad gateway</html>"))

	if _, err := c.GetRun(context.Background(), "run_y"); err == nil || !strings.Contains(err.Error(), "status 502") {
		t.Errorf("expected parse error, got %v", err)
	}
}
