// Package fetcher downloads lead exports over HTTP and FTP and parses the
// CSV and XLSX files they arrive as.
package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the streaming export parser.
type CSVOptions struct {
	Delimiter rune            // default ','
	HasHeader bool            // first row goes to HeaderCh instead of the row channel
	HeaderCh  chan<- []string // optional; receives the header row
	TrimSpace bool            // trim whitespace around every field
}

// StreamCSV parses an export row by row. The caller must drain the row
// channel; both channels close when parsing ends, and at most one error is
// sent.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		// Outreach-tool exports quote inconsistently and pad columns
		// unevenly, so accept stray quotes and ragged rows.
		reader.LazyQuotes = true
		reader.FieldsPerRecord = -1

		header := opts.HasHeader
		for {
			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			if opts.TrimSpace {
				for i := range record {
					record[i] = strings.TrimSpace(record[i])
				}
			}

			var dst chan<- []string = rowCh
			if header {
				header = false
				if opts.HeaderCh == nil {
					continue
				}
				dst = opts.HeaderCh
			}

			select {
			case dst <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}
