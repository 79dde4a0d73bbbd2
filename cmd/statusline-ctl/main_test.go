package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statusline/statusline/pkg/types"
)

func TestReadEvents(t *testing.T) {
	input := `{"entity_id":"truck-1","timestamp":100,"event":"idle"}

{"entity_id":"truck-2","timestamp":50,"event":"drive"}
{"entity_id":"truck-1","timestamp":200,"event":"drive"}
`
	order, byEntity, err := readEvents(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"truck-1", "truck-2"}, order)
	assert.Equal(t, []types.Event{{Timestamp: 100, State: "idle"}, {Timestamp: 200, State: "drive"}}, byEntity["truck-1"])
	assert.Equal(t, []types.Event{{Timestamp: 50, State: "drive"}}, byEntity["truck-2"])
}

func TestReadEvents_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bad json", `{"entity_id":`, "line 1"},
		{"missing entity", `{"timestamp":1,"event":"idle"}`, "entity_id is required"},
		{"missing timestamp", "{\"entity_id\":\"a\",\"timestamp\":1,\"event\":\"x\"}\n{\"entity_id\":\"a\",\"event\":\"idle\"}", "line 2: timestamp is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := readEvents(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestStatusCommand(t *testing.T) {
	dbPath = t.TempDir() + "/events.db"

	store, err := openStore()
	require.NoError(t, err)
	require.NoError(t, store.Append(t.Context(), "truck-1", types.Event{Timestamp: 100, State: "idle"}))
	require.NoError(t, store.Close())

	var out strings.Builder
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"status", "truck-1", "--db", dbPath, "--start", "200", "--end", "300"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), `"event": "no_data"`)

	rootCmd.SetArgs([]string{"status", "truck-1", "--db", dbPath, "--start", "300", "--end", "200"})
	err = rootCmd.Execute()
	require.Error(t, err)
}
