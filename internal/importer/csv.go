package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/whitover/whitoverbot/internal/domain"
	"github.com/whitover/whitoverbot/internal/storage"
)

// CSVSource reads a roster snapshot exported to a CSV file with a
// header row: id, nickname, discord, telegram, is_resident.
type CSVSource struct {
	path string
}

func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

func (c *CSVSource) Fetch(ctx context.Context) ([]storage.ImportedRow, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	col := map[string]int{}
	for i, name := range records[0] {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []storage.ImportedRow
	for _, row := range records[1:] {
		id := field(row, "id")
		if id == "" {
			continue
		}
		out = append(out, storage.ImportedRow{
			ID:       domain.ResidentID(id),
			Nick:     field(row, "nickname"),
			Discord:  field(row, "discord"),
			ChatID:   domain.ChatID(field(row, "telegram")),
			Resident: strings.EqualFold(field(row, "is_resident"), "true"),
		})
	}
	return out, nil
}
