package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type traceResponse struct {
	Status string      `json:"status"`
	Data   TraceResult `json:"data"`
}

func TestTrace_JournalAcrossRuns(t *testing.T) {
	_, url := startDemoService(t)
	cfg := writeCLIConfig(t, url, "demo")
	journal := filepath.Join(t.TempDir(), "cart.db")

	_, _, err := execute(t, "", "set", "1001", "3", "--config", cfg, "--journal", journal)
	require.NoError(t, err)
	_, _, err = execute(t, "", "show", "--config", cfg, "--journal", journal)
	require.NoError(t, err)

	out, _, err := execute(t, "", "trace", "--journal", journal, "--format", "json")
	require.NoError(t, err)

	var resp traceResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	assert.Equal(t, "ok", resp.Status)

	timeline := resp.Data.Timeline
	require.Len(t, timeline, 6)
	ops := make([]string, 0, len(timeline))
	for i, e := range timeline {
		assert.Equal(t, int64(i+1), e.Seq, "seq resumes across runs")
		ops = append(ops, e.Type+":"+e.Op)
	}
	assert.Equal(t, []string{
		"intent:refresh", "outcome:refresh",
		"intent:set_quantity", "outcome:set_quantity",
		"intent:refresh", "outcome:refresh",
	}, ops)

	assert.Equal(t, "Quantity updated", timeline[3].Message)
	assert.Equal(t, 1001.0, timeline[2].Data["product_id"])
	assert.Equal(t, "1516.99", timeline[3].Data["total"])

	assert.Equal(t, 3, resp.Data.Stats.Intents)
	assert.Equal(t, 3, resp.Data.Stats.Outcomes)
	assert.Equal(t, map[string]int{"ok": 3}, resp.Data.Stats.ByKind)
	assert.Empty(t, resp.Data.Pending)
}

func TestTrace_FilterAndLimit(t *testing.T) {
	_, url := startDemoService(t)
	cfg := writeCLIConfig(t, url, "demo")
	journal := filepath.Join(t.TempDir(), "cart.db")

	_, _, err := execute(t, "", "inc", "2001", "--config", cfg, "--journal", journal)
	require.NoError(t, err)

	out, _, err := execute(t, "", "trace", "--journal", journal, "--op", "increment")
	require.NoError(t, err)
	assert.Contains(t, out, "→ increment")
	assert.Contains(t, out, `← ok`)
	assert.NotContains(t, out, "→ refresh")
	assert.Contains(t, out, "1 intent(s), 1 outcome(s), ok=1")

	out, _, err = execute(t, "", "trace", "--journal", journal, "--limit", "1", "--format", "json")
	require.NoError(t, err)
	var resp traceResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Timeline, 1)
	assert.Equal(t, "outcome", resp.Data.Timeline[0].Type)
	assert.Equal(t, "increment", resp.Data.Timeline[0].Op)
}

func TestTrace_EmptyJournal(t *testing.T) {
	journal := filepath.Join(t.TempDir(), "cart.db")

	out, _, err := execute(t, "", "trace", "--journal", journal)
	require.NoError(t, err)
	assert.Contains(t, out, "(no entries)")
}

func TestTrace_NoJournal(t *testing.T) {
	_, _, err := execute(t, "", "trace")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no journal configured")
}

func TestFormatData(t *testing.T) {
	assert.Equal(t, "{}", formatData(nil))
	assert.Equal(t, "{count=2 total=45}", formatData(map[string]any{"total": "45", "count": 2}))
}
