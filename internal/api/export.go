package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// ExportCSV streams the session's listings as CSV. Specifications become
// spec_ columns; the header is the sorted union of keys across all rows so
// every row lines up even when listings carry different specifications.
func (h *Handlers) ExportCSV(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	rows := make([]map[string]any, 0, len(snap.Listings))
	keySet := map[string]bool{}
	for _, l := range snap.Listings {
		row := flattenListing(l)
		for key := range row {
			keySet[key] = true
		}
		rows = append(rows, row)
	}

	header := make([]string, 0, len(keySet))
	for key := range keySet {
		header = append(header, key)
	}
	sort.Strings(header)

	filename := fmt.Sprintf("onderdelenlijn_export_%s.csv", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	writer := csv.NewWriter(w)
	if len(rows) > 0 {
		if err := writer.Write(header); err != nil {
			h.logger.Error("failed to write CSV header", "error", err)
			return
		}

		record := make([]string, len(header))
		for _, row := range rows {
			for i, key := range header {
				if value, ok := row[key]; ok {
					record[i] = fmt.Sprint(value)
				} else {
					record[i] = ""
				}
			}
			if err := writer.Write(record); err != nil {
				h.logger.Error("failed to write CSV row", "error", err)
				return
			}
		}
	}
	writer.Flush()

	if err := writer.Error(); err != nil {
		h.logger.Error("failed to flush CSV", "error", err)
	}
}
