package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/osversion/internal/ir"
	"github.com/roach88/osversion/internal/store"
)

// recordedLog translates mech_vent.osm to 3.10.1 and then to the latest
// version, recording both runs in a fresh log.
func recordedLog(t *testing.T) (db string, runs []store.Run) {
	t.Helper()
	db = filepath.Join(t.TempDir(), "runs.db")
	_, _, err := execute(t, "translate", mechVentModel, "--target", "3.10.1", "--db", db)
	require.NoError(t, err)
	_, _, err = execute(t, "translate", mechVentModel, "--db", db)
	require.NoError(t, err)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	runs, err = st.ListRuns(t.Context())
	require.NoError(t, err)
	require.Len(t, runs, 2)
	return db, runs
}

func TestHistoryList(t *testing.T) {
	db, runs := recordedLog(t)

	stdout, _, err := execute(t, "history", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, stdout, "   1  "+runs[0].ID[:12]+"  3.10.0 -> 3.10.1  added=0 removed=0 modified=1 warnings=0\n")
	assert.Contains(t, stdout, "   2  "+runs[1].ID[:12]+"  3.10.0 -> 3.11.0")
}

func TestHistoryListJSON(t *testing.T) {
	db, runs := recordedLog(t)

	stdout, _, err := execute(t, "--format", "json", "history", "--db", db)
	require.NoError(t, err)

	var resp struct {
		Data HistoryResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, runs, resp.Data.Runs)
}

func TestHistoryForInput(t *testing.T) {
	db, _ := recordedLog(t)

	stdout, _, err := execute(t, "--format", "json", "history", "--db", db, "--input", mechVentModel)
	require.NoError(t, err)
	var resp struct {
		Data HistoryResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Len(t, resp.Data.Runs, 2)

	stdout, _, err = execute(t, "history", "--db", db, "--input", danglingModel)
	require.NoError(t, err)
	assert.Equal(t, "No runs recorded.\n", stdout)
}

func TestHistoryShowRun(t *testing.T) {
	db, runs := recordedLog(t)

	stdout, _, err := execute(t, "history", "--db", db, runs[0].ID[:8])
	require.NoError(t, err)
	assert.Contains(t, stdout, "run "+runs[0].ID+" (seq 1)")
	assert.Contains(t, stdout, "input  "+runs[0].InputDigest)
	assert.Contains(t, stdout, "translation 3.10.0 -> 3.10.1")
	assert.Contains(t, stdout, `"Outdoor Air Method": "System Outdoor Air Method" -> "Outdoor Air Method"`)

	stdout, _, err = execute(t, "--format", "json", "history", "--db", db, runs[1].ID)
	require.NoError(t, err)
	var resp struct {
		Data struct {
			Run store.Run `json:"run"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, ir.V(3, 11, 0), resp.Data.Run.To)
}

func TestHistoryErrors(t *testing.T) {
	db, _ := recordedLog(t)

	stdout, _, err := execute(t, "history", "--db", db, "ffffffffffff")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E005]")
	assert.ErrorIs(t, err, store.ErrRunNotFound)

	_, _, err = execute(t, "history", "--db", filepath.Join(t.TempDir(), "none.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, _, err = execute(t, "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "db" not set`)
}

func TestResolveRunID(t *testing.T) {
	db, runs := recordedLog(t)
	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	id, err := resolveRunID(t.Context(), st, runs[1].ID[:10])
	require.NoError(t, err)
	assert.Equal(t, runs[1].ID, id)

	_, err = resolveRunID(t.Context(), st, "")
	require.Error(t, err, "the empty prefix matches both runs")
	assert.Contains(t, err.Error(), "ambiguous: 2 runs match")
}
