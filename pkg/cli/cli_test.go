package cli

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	arrowflightsql "github.com/apache/arrow-go/v18/arrow/flight/flightsql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const seedNums = `CREATE TABLE nums (id INTEGER, label TEXT);
WITH RECURSIVE c(n) AS (SELECT 1 UNION ALL SELECT n + 1 FROM c WHERE n < 100)
INSERT INTO nums SELECT n, 'r' || n FROM c;`

func TestRun_NoArgsShowsHelp(t *testing.T) {
	isolate(t)
	stdout, _, code := runCLI(t)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "Usage:")
	assert.Contains(t, stdout, "polite <SQL|@file> [DB_PATH]")
}

func TestRun_HelpFlag(t *testing.T) {
	isolate(t)
	stdout, _, code := runCLI(t, "-h")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "--partition-on")
}

func TestRun_SelectPrintsTable(t *testing.T) {
	isolate(t)
	stdout, stderr, code := runCLI(t, "SELECT 1 AS one, 'x' AS two")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "shape: (1, 2)")
	assert.Contains(t, stdout, "one (")
	assert.Contains(t, stdout, "two (str)")
	assert.NotContains(t, stdout, "…")
	assert.NotContains(t, stderr, "Executed successfully")
}

func TestRun_StatementsReportAffectedRows(t *testing.T) {
	isolate(t)
	db := tempDB(t)

	_, stderr, code := runCLI(t, seedNums, db)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stderr, "Executed successfully, 0 row(s) affected")
	assert.Contains(t, stderr, "Executed successfully, 100 row(s) affected")

	_, stderr, code = runCLI(t, "UPDATE nums SET label = 'x'", db)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stderr, "Executed successfully, 100 row(s) affected")
}

func TestRun_OutputFormats(t *testing.T) {
	isolate(t)
	db := tempDB(t)
	_, stderr, code := runCLI(t, "CREATE TABLE t (id INTEGER, name TEXT); INSERT INTO t VALUES (1, 'a'), (2, NULL)", db)
	require.Equal(t, 0, code, stderr)

	stdout, stderr, code := runCLI(t, "-o", "csv", "SELECT id, name FROM t ORDER BY id", db)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "id,name\n1,a\n2,\n", stdout)

	stdout, stderr, code = runCLI(t, "--output", "json", "SELECT id FROM t ORDER BY id", db)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, `{"id":1}`)
	assert.Contains(t, stdout, `{"id":2}`)
}

func TestRun_InvalidOutputFormat(t *testing.T) {
	isolate(t)
	_, stderr, code := runCLI(t, "-o", "xml", "SELECT 1")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Error:")
	assert.Contains(t, stderr, "unsupported output format")
}

func TestRun_ScriptFile(t *testing.T) {
	isolate(t)
	script := filepath.Join(t.TempDir(), "script.sql")
	require.NoError(t, os.WriteFile(script, []byte(seedNums+"\nSELECT COUNT(*) AS n FROM nums;\n"), 0o600))

	stdout, stderr, code := runCLI(t, "-o", "csv", "@"+script)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "n\n100\n", stdout)
}

func TestRun_MissingScriptFile(t *testing.T) {
	isolate(t)
	_, stderr, code := runCLI(t, "@"+filepath.Join(t.TempDir(), "nope.sql"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "read script")
}

func TestRun_EmptyScript(t *testing.T) {
	isolate(t)
	_, stderr, code := runCLI(t, " ;; ")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "no SQL statement")
}

func TestRun_QueryErrorExitsNonZero(t *testing.T) {
	isolate(t)
	stdout, stderr, code := runCLI(t, "SELECT * FROM missing")
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "no such table")
}

func TestRun_ExecErrorStopsScript(t *testing.T) {
	isolate(t)
	stdout, stderr, code := runCLI(t, "CREATE TABLE t (id INTEGER); INSERT INTO nope VALUES (1); SELECT 1")
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "failed to execute SQL")
}

func TestRun_PartitionedSelect(t *testing.T) {
	isolate(t)
	db := tempDB(t)
	_, stderr, code := runCLI(t, seedNums, db)
	require.Equal(t, 0, code, stderr)

	stdout, stderr, code := runCLI(t, "--partition-on", "id", "--partitions", "4", "--parallel", "2", "-o", "csv",
		"SELECT id FROM nums", db)
	require.Equal(t, 0, code, stderr)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 101)
	assert.Equal(t, "id", lines[0])
	assert.Equal(t, "1", lines[1])
	assert.Equal(t, "100", lines[100])
}

func TestRun_PartitionsRequireColumn(t *testing.T) {
	isolate(t)
	_, stderr, code := runCLI(t, "--partitions", "4", "SELECT 1")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "--partitions requires --partition-on")
}

func TestRun_EnvironmentSettings(t *testing.T) {
	isolate(t)
	db := tempDB(t)
	_, stderr, code := runCLI(t, "CREATE TABLE t (id INTEGER); INSERT INTO t VALUES (7)", db)
	require.Equal(t, 0, code, stderr)

	t.Setenv("POLITE_DB", db)
	t.Setenv("POLITE_OUTPUT", "csv")
	stdout, stderr, code := runCLI(t, "SELECT id FROM t")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "id\n7\n", stdout)

	// Flags win over the environment.
	stdout, _, code = runCLI(t, "-o", "json", "SELECT id FROM t")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, `{"id":7}`)
}

func TestRun_InvalidParallelEnvWarns(t *testing.T) {
	isolate(t)
	t.Setenv("POLITE_PARALLEL", "zero")
	_, stderr, code := runCLI(t, "SELECT 1")
	require.Equal(t, 0, code)
	assert.Contains(t, stderr, "POLITE_PARALLEL")
}

func TestRun_ProfileStore(t *testing.T) {
	isolate(t)
	db := tempDB(t)
	_, stderr, code := runCLI(t, "CREATE TABLE t (id INTEGER); INSERT INTO t VALUES (1), (2)", db)
	require.Equal(t, 0, code, stderr)

	_, stderr, code = runCLI(t, "config", "set-profile", "--name", "default", "--db", db, "--default-output", "csv")
	require.Equal(t, 0, code, stderr)

	stdout, stderr, code := runCLI(t, "SELECT COUNT(*) AS n FROM t")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "n\n2\n", stdout)
}

func TestLoadAndExport(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	db := filepath.Join(dir, "store.db")
	src := filepath.Join(dir, "items.csv")
	require.NoError(t, os.WriteFile(src, []byte("id,price,name\n1,2.5,pen\n2,3,ink\n3,10.25,cap\n"), 0o600))

	_, stderr, code := runCLI(t, "load", "items", src, db)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stderr, "Loaded 3 row(s) into items")

	stdout, stderr, code := runCLI(t, "-o", "csv", "SELECT typeof(id), typeof(price), typeof(name) FROM items LIMIT 1", db)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "integer,real,text")

	for _, ext := range []string{".parquet", ".csv", ".json"} {
		t.Run(ext, func(t *testing.T) {
			out := filepath.Join(dir, "export"+ext)
			_, stderr, code := runCLI(t, "export", "SELECT * FROM items ORDER BY id", out, db)
			require.Equal(t, 0, code, stderr)
			assert.Contains(t, stderr, "Exported 3 row(s)")

			info, err := os.Stat(out)
			require.NoError(t, err)
			assert.Positive(t, info.Size())
		})
	}

	// Parquet and CSV exports load back into new tables.
	_, stderr, code = runCLI(t, "load", "--atomic", "items_pq", filepath.Join(dir, "export.parquet"), db)
	require.Equal(t, 0, code, stderr)
	_, stderr, code = runCLI(t, "load", "items_csv", filepath.Join(dir, "export.csv"), db)
	require.Equal(t, 0, code, stderr)

	stdout, stderr, code = runCLI(t, "-o", "csv",
		"SELECT (SELECT SUM(price) FROM items_pq) = (SELECT SUM(price) FROM items_csv) AS same", db)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "same\n1\n", stdout)
}

func TestLoad_NeedsStorePath(t *testing.T) {
	isolate(t)
	src := filepath.Join(t.TempDir(), "a.csv")
	require.NoError(t, os.WriteFile(src, []byte("a\n1\n"), 0o600))

	_, stderr, code := runCLI(t, "load", "t", src)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "load needs a store path")
}

func TestLoad_MissingFile(t *testing.T) {
	isolate(t)
	_, stderr, code := runCLI(t, "load", "t", filepath.Join(t.TempDir(), "none.csv"), tempDB(t))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "open")
}

func TestExport_UnsupportedExtension(t *testing.T) {
	isolate(t)
	out := filepath.Join(t.TempDir(), "out.xlsx")
	_, stderr, code := runCLI(t, "export", "SELECT 1", out)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "unsupported export format")
	assert.NoFileExists(t, out)
}

func TestExport_QueryFailureLeavesNoFile(t *testing.T) {
	isolate(t)
	out := filepath.Join(t.TempDir(), "out.csv")
	_, stderr, code := runCLI(t, "export", "SELECT * FROM missing", out)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "failed to load frame")
	assert.NoFileExists(t, out)
}

func TestServe_NeedsStorePath(t *testing.T) {
	isolate(t)
	_, stderr, code := runCLI(t, "serve")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "serve needs a store path")
}

func TestServe_StreamsUntilCancelled(t *testing.T) {
	isolate(t)
	db := tempDB(t)
	_, stderr, code := runCLI(t, seedNums, db)
	require.Equal(t, 0, code, stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var stdout, serveErr syncBuffer
	done := make(chan int, 1)
	go func() {
		done <- execute(ctx, []string{"serve", db, "--addr", "127.0.0.1:0"}, &stdout, &serveErr)
	}()

	addrPattern := regexp.MustCompile(`at (127\.0\.0\.1:\d+)`)
	var addr string
	require.Eventually(t, func() bool {
		m := addrPattern.FindStringSubmatch(serveErr.String())
		if m == nil {
			return false
		}
		addr = m[1]
		return true
	}, 5*time.Second, 20*time.Millisecond)

	client, err := arrowflightsql.NewClient(addr, nil, nil, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer client.Close() //nolint:errcheck

	qctx, qcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer qcancel()
	info, err := client.Execute(qctx, "SELECT id FROM nums WHERE id <= 10")
	require.NoError(t, err)
	rdr, err := client.DoGet(qctx, info.Endpoint[0].Ticket)
	require.NoError(t, err)
	var rows int64
	for rdr.Next() {
		rows += rdr.Record().NumRows()
	}
	rdr.Release()
	assert.Equal(t, int64(10), rows)

	cancel()
	select {
	case code := <-done:
		assert.Equal(t, 0, code, serveErr.String())
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop after cancellation")
	}
}

func TestVersion(t *testing.T) {
	isolate(t)
	stdout, _, code := runCLI(t, "version")
	require.Equal(t, 0, code)
	assert.Equal(t, "polite version dev (commit: none)\n", stdout)

	stdout, _, code = runCLI(t, "version", "-o", "json")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, `"version": "dev"`)
}

func TestVersion_ResolvedOutputFormat(t *testing.T) {
	isolate(t)
	t.Setenv("POLITE_OUTPUT", "json")
	stdout, stderr, code := runCLI(t, "version")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, `"commit": "none"`)

	stdout, stderr, code = runCLI(t, "version", "-o", "table")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "polite version dev (commit: none)\n", stdout)
}

func TestConfigShow_ProfileOutputFormat(t *testing.T) {
	isolate(t)
	_, stderr, code := runCLI(t, "config", "set-profile", "--name", "default", "--default-output", "json")
	require.Equal(t, 0, code, stderr)

	stdout, stderr, code := runCLI(t, "config", "show")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, `"current-profile": "default"`)
}

func TestCompletion(t *testing.T) {
	isolate(t)
	stdout, _, code := runCLI(t, "completion", "bash")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "polite")

	_, stderr, code := runCLI(t, "completion", "tcsh")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "unsupported shell")
}

func TestValidateOutputFormat(t *testing.T) {
	tests := []struct {
		output  string
		wantErr bool
	}{
		{"table", false},
		{"csv", false},
		{"json", false},
		{"", true},
		{"yaml", true},
	}
	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			err := validateOutputFormat(tt.output)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestReadScript(t *testing.T) {
	got, err := readScript("SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", got)

	_, err = readScript("@")
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "q.sql")
	require.NoError(t, os.WriteFile(path, []byte("SELECT 2"), 0o600))
	got, err = readScript("@" + path)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 2", got)
}
