package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-intake/backend/internal/service/ai"
	"github.com/zhouzirui/z-intake/backend/internal/service/intake"
	"github.com/zhouzirui/z-intake/backend/internal/service/persist"
)

func newTestCoordinator(t *testing.T) (*intake.Coordinator, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := persist.NewFileStore(dir, nil)
	require.NoError(t, err)
	return intake.New(ai.KeyValueInterpreter{}, store, intake.DefaultConfig(), nil), dir
}

func TestRunChatSavesRecord(t *testing.T) {
	coord, dir := newTestCoordinator(t)
	in := strings.NewReader(strings.Join([]string{
		"name: Ada Lovelace; role: Analyst; department: Finance; timeline: next Friday",
		"",
		"type: update",
		"report name: Weekly churn; changes needed: add region split; timeline: end of month",
	}, "\n"))
	var out bytes.Buffer

	require.NoError(t, runChat(context.Background(), coord, in, &out))
	require.Contains(t, out.String(), "Let's capture what needs to change.")
	require.Contains(t, out.String(), "All set! Your request is saved")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	var inspected bytes.Buffer
	require.NoError(t, inspectRecord(data, &inspected))
	require.Contains(t, inspected.String(), "Request type: update to an existing report, requested by Ada Lovelace")
	require.True(t, strings.HasSuffix(inspected.String(), "record is valid\n"))
}

func TestRunChatQuit(t *testing.T) {
	coord, _ := newTestCoordinator(t)
	var out bytes.Buffer
	require.NoError(t, runChat(context.Background(), coord, strings.NewReader("/quit\nname: Ada\n"), &out))
	require.Equal(t, 1, coord.ActiveSessions())
}

func TestRunChatReportsFailure(t *testing.T) {
	coord, _ := newTestCoordinator(t)
	in := strings.NewReader(strings.Join([]string{
		"name: Ada Lovelace; role: Analyst; department: Finance; timeline: next Friday",
		"type: report",
		"type: dashboard",
	}, "\n"))
	var out bytes.Buffer

	err := runChat(context.Background(), coord, in, &out)
	require.EqualError(t, err, "session failed: reclassification_attempt")
}

func TestInspectRejectsForeignKeys(t *testing.T) {
	record := `{
  "basic_info": {"name": "Ada", "role": "Analyst", "department": "Finance", "timeline": "Friday", "collected_at": "2024-06-03T09:30:00.000000Z"},
  "request_type": "updates",
  "requirements": {"existing_report_name": "Churn", "changes_needed": ["split"], "timeline": "May", "metrics": ["x"]},
  "metadata": {"created_at": "2024-06-03T09:31:00.000000Z", "session_id": "s1", "status": "pending_review"}
}`
	var out bytes.Buffer
	err := inspectRecord([]byte(record), &out)
	require.Error(t, err)
	require.Contains(t, err.Error(), "do not match the update-request schema")
}

// sweepingReader hands out one line per Read and runs the idle sweep
// before every line after the first.
type sweepingReader struct {
	coord *intake.Coordinator
	lines []string
	reads int
}

func (r *sweepingReader) Read(p []byte) (int, error) {
	if len(r.lines) == 0 {
		return 0, io.EOF
	}
	if r.reads > 0 {
		r.coord.ExpireIdle(context.Background(), time.Now().Add(24*time.Hour))
	}
	r.reads++
	n := copy(p, r.lines[0]+"\n")
	r.lines = r.lines[1:]
	return n, nil
}

func TestRunChatSessionSweptWhileIdle(t *testing.T) {
	coord, dir := newTestCoordinator(t)
	in := &sweepingReader{coord: coord, lines: []string{
		"name: Ada Lovelace; role: Analyst",
		"department: Finance",
	}}
	var out bytes.Buffer

	require.NoError(t, runChat(context.Background(), coord, in, &out))
	require.Contains(t, out.String(), "This session expired after being idle.")
	require.Zero(t, coord.ActiveSessions())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}
