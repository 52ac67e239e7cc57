package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Columns is the header of the flat dataset table
var Columns = []string{
	"id", "owner", "place", "latitude", "longitude", "taken_at", "accuracy",
	"title", "tags", "owner_name", "asset_url", "local_path", "owner_hometown",
}

// WriteCSV writes d as a header row plus one row per record
func WriteCSV(w io.Writer, d *Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	if d != nil {
		for _, r := range d.Records {
			taken := ""
			if !r.TakenAt.IsZero() {
				taken = r.TakenAt.UTC().Format(time.DateTime)
			}
			row := []string{
				r.ID,
				r.Owner,
				r.Place,
				strconv.FormatFloat(r.Latitude, 'f', -1, 64),
				strconv.FormatFloat(r.Longitude, 'f', -1, 64),
				taken,
				strconv.Itoa(r.Accuracy),
				r.Title,
				r.Tags,
				r.OwnerName,
				r.AssetURL,
				r.LocalPath,
				r.OwnerHometown,
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes d to path, creating parent directories
func SaveCSV(path string, d *Dataset) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create dataset directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dataset file: %w", err)
	}
	if err := WriteCSV(f, d); err != nil {
		f.Close()
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	return f.Close()
}
