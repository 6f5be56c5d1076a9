package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gogrid/adapters/excel"
	"gogrid/adapters/memory"
	"gogrid/app"
	"gogrid/domain/core"
	"gogrid/internal"
	"gogrid/internal/compute"
	"gogrid/internal/errors"
	"gogrid/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestComputeCommand(t *testing.T) {
	out, err := execute(t, `[{"A":"2","B":"=A1*3","C":"x","D":""}]`, "compute")
	require.NoError(t, err)

	var resp models.ComputeResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Result, 1)
	assert.Equal(t, "6", resp.Result.Cell(0, "B"))
	assert.Equal(t, "x", resp.Result.Cell(0, "C"))
}

func TestComputeCommandAcceptsRequestEnvelope(t *testing.T) {
	out, err := execute(t, `{"rawData":[{"A":"=1+2"}]}`, "compute", "--rows", "3")
	require.NoError(t, err)

	var resp models.ComputeResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Result, 3)
	assert.Equal(t, "3", resp.Result.Cell(0, "A"))
	assert.Equal(t, "", resp.Result.Cell(2, "D"))
}

func TestComputeCommandRejectsGarbage(t *testing.T) {
	_, err := execute(t, `not json`, "compute")
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestEvalCommand(t *testing.T) {
	out, err := execute(t, "", "eval", "=2+3*4")
	require.NoError(t, err)
	assert.Equal(t, "20\n", out)

	path := filepath.Join(t.TempDir(), "grid.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"A":"1.5","B":"2"}]`), 0o644))
	out, err = execute(t, "", "eval", "=A1+B1", "--grid", path)
	require.NoError(t, err)
	assert.Equal(t, "3.5\n", out)
}

func TestEvalCommandMissingGrid(t *testing.T) {
	_, err := execute(t, "", "eval", "=A1", "--grid", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestExportCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "grid.json")
	out := filepath.Join(dir, "grid.xlsx")
	require.NoError(t, os.WriteFile(in, []byte(`[{"A":"4","B":"=A1-5"}]`), 0o644))

	text, err := execute(t, "", "export", in, "-o", out)
	require.NoError(t, err)
	assert.Contains(t, text, "wrote 1 rows")

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	raw, err := excel.NewWorkbook().Import(f, 1)
	require.NoError(t, err)
	assert.Equal(t, "=A1-5", raw.Cell(0, "B"))
}

func newTestSession(t *testing.T) *session {
	t.Helper()
	logger := internal.NewLogger(internal.LogLevelError)
	ch := compute.NewChannel(nil, logger)
	t.Cleanup(ch.Close)
	grids := app.NewGridService(memory.NewGridRepository(), ch, nil, nil, app.GridServiceConfig{Rows: 3}, logger)
	return &session{grids: grids, key: core.DefaultGridKey, rows: 3}
}

func TestSessionSetAndShow(t *testing.T) {
	sess := newTestSession(t)
	ctx := context.Background()

	out, quit, err := sess.exec(ctx, "A1 5")
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Contains(t, out, "| 1 | 5 |")

	out, _, err = sess.exec(ctx, "b1 =A1 * 2")
	require.NoError(t, err)
	assert.Contains(t, out, "| 1 | 5 | 10 |")

	out, _, err = sess.exec(ctx, "C1 -1")
	require.NoError(t, err)
	assert.Contains(t, out, "C1 is negative")

	out, _, err = sess.exec(ctx, "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "negative C1: -1")

	out, _, err = sess.exec(ctx, "clear A1")
	require.NoError(t, err)
	assert.Contains(t, out, "| 1 |  | 0 |")
}

func TestSessionCommands(t *testing.T) {
	sess := newTestSession(t)
	ctx := context.Background()

	out, _, err := sess.exec(ctx, "help")
	require.NoError(t, err)
	assert.Contains(t, out, "quit")

	_, _, err = sess.exec(ctx, "Z9 1")
	assert.Error(t, err)

	_, _, err = sess.exec(ctx, "load")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "grid.csv")
	require.NoError(t, os.WriteFile(path, []byte("7,=A1+1\n"), 0o644))
	out, _, err = sess.exec(ctx, "load "+path)
	require.NoError(t, err)
	assert.Contains(t, out, "| 1 | 7 | 8 |")

	out, _, err = sess.exec(ctx, "raw")
	require.NoError(t, err)
	assert.Contains(t, out, "=A1+1")

	_, quit, err := sess.exec(ctx, "quit")
	require.NoError(t, err)
	assert.True(t, quit)
}
