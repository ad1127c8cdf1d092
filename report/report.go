package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"payments-engine/domain"
)

var Header = []string{"client", "available", "held", "total", "locked"}

// Write renders one row per snapshot, in the order given, after the header.
func Write(w io.Writer, snapshots []domain.Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write report header: %w", err)
	}
	for _, snap := range snapshots {
		if err := cw.Write(snap.Record()); err != nil {
			return fmt.Errorf("failed to write report row for client %s: %w", snap.Client, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
