package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/statusline/statusline/internal/status"
	"github.com/statusline/statusline/pkg/types"
)

// maxLineBytes bounds a single JSON line.
const maxLineBytes = 1 << 20

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.jsonl>",
	Short: "Append events from a JSON lines file",
	Long: `Append events to the store. Each line is one event:

  {"entity_id": "truck-7", "timestamp": 1700000000000, "event": "drive"}

Use "-" to read from standard input. Events of one entity keep file order.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

// eventLine is one line of an ingest file.
type eventLine struct {
	EntityID  string `json:"entity_id"`
	Timestamp *int64 `json:"timestamp"`
	Event     string `json:"event"`
}

func runIngest(cmd *cobra.Command, args []string) error {
	var in io.Reader = os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	order, byEntity, err := readEvents(in)
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	service := status.NewService(store, nil, nil)
	total := 0
	for _, id := range order {
		n, err := service.Append(cmd.Context(), id, byEntity[id])
		if err != nil {
			return fmt.Errorf("entity %s: %w", id, err)
		}
		total += n
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d events for %d entities into %s\n", total, len(order), dbPath)
	return nil
}

// readEvents groups the events of a JSON lines stream by entity. order
// lists entities in first-seen order. Blank lines are skipped.
func readEvents(r io.Reader) (order []string, byEntity map[string][]types.Event, err error) {
	byEntity = make(map[string][]types.Event)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var ev eventLine
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if ev.EntityID == "" {
			return nil, nil, fmt.Errorf("line %d: entity_id is required", lineNo)
		}
		if ev.Timestamp == nil {
			return nil, nil, fmt.Errorf("line %d: timestamp is required", lineNo)
		}

		if _, seen := byEntity[ev.EntityID]; !seen {
			order = append(order, ev.EntityID)
		}
		byEntity[ev.EntityID] = append(byEntity[ev.EntityID], types.Event{Timestamp: *ev.Timestamp, State: ev.Event})
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return order, byEntity, nil
}
