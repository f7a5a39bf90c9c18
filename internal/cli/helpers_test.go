package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/studiometa/productive-tools-sub004/internal/config"
	"github.com/studiometa/productive-tools-sub004/internal/resolver"
	"github.com/studiometa/productive-tools-sub004/internal/testutil"
)

var captureStdoutMu sync.Mutex

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	captureStdoutMu.Lock()
	defer captureStdoutMu.Unlock()

	var buf bytes.Buffer
	orig := stdout
	stdout = &buf
	defer func() { stdout = orig }()

	fn()
	return buf.String()
}

// testCLI runs commands against a temp config, a temp cache and a fake API.
type testCLI struct {
	api        *testutil.FakeAPI
	configPath string
	cacheDir   string
}

func newTestCLI(t *testing.T) *testCLI {
	t.Helper()
	dir := t.TempDir()
	tc := &testCLI{
		api:        testutil.NewFakeAPI(),
		configPath: filepath.Join(dir, "config", "config.toml"),
		cacheDir:   filepath.Join(dir, "cache"),
	}

	t.Setenv("PRODUCTIVE_ORG_ID", "42")
	t.Setenv("PRODUCTIVE_API_TOKEN", "test-token")
	t.Setenv("PRODUCTIVE_BASE_URL", "")
	t.Setenv("PRODUCTIVE_CACHE_DIR", tc.cacheDir)

	prevRemote := newRemote
	newRemote = func(config.Org, *zap.Logger) remoteAPI { return tc.api }
	t.Cleanup(func() {
		newRemote = prevRemote
		resetFlagsForTest()
	})
	return tc
}

func resetFlagsForTest() {
	jsonOutput = false
	orgFlag = ""
	configPath = ""
	statePathFlag = ""
	verbose = false

	resolveOpts = resolver.Options{}
	resolveOne = false
	getParams = nil
	getNoCache = false
	cacheClearQueries = false
	cacheDumpOutput = ""
	cacheQueueMax = 0
	cacheQueueLimit = 50
	orgAddID = ""
	orgAddToken = ""
	orgAddBaseURL = ""
	orgAddDefault = false
	orgRemoveConfirm = false
	mcpClientFlag = "claude-code"
	mcpStatusClientFlag = ""
}

// run executes the CLI with args and returns what was written to stdout.
func (tc *testCLI) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlagsForTest()

	var err error
	out := captureStdout(t, func() {
		rootCmd.SetArgs(append(args, "--config", tc.configPath))
		rootCmd.SetErr(io.Discard)
		rootCmd.SetIn(bytes.NewReader(nil))
		err = Execute(context.Background())
	})
	return out, err
}

type envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *ErrorInfo      `json:"error"`
	Meta  *Meta           `json:"meta"`
}

// runJSON runs the CLI in --json mode and decodes the envelope.
func (tc *testCLI) runJSON(t *testing.T, args ...string) envelope {
	t.Helper()
	out, err := tc.run(t, append(args, "--json")...)
	if err != nil {
		t.Fatalf("%v: unexpected error: %v; out=%s", args, err, out)
	}
	var env envelope
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		t.Fatalf("%v: expected JSON output, got parse error: %v; out=%s", args, err, out)
	}
	return env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode data: %v; data=%s", err, env.Data)
	}
	return v
}

func requireErrorCode(t *testing.T, env envelope, code string) {
	t.Helper()
	if env.OK {
		t.Fatalf("expected ok=false with %s, got ok=true; data=%s", code, env.Data)
	}
	if env.Error == nil || env.Error.Code != code {
		t.Fatalf("error = %+v, want code %s", env.Error, code)
	}
}
