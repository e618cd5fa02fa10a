// Package importer merges outreach-tool lead exports into the local store.
package importer

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/glampguide/funnel-cli/internal/fetcher"
	"github.com/glampguide/funnel-cli/internal/model"
)

// LeadStore is the slice of the store the importer writes through.
type LeadStore interface {
	UpsertLeads(ctx context.Context, leads []model.Lead) (int64, error)
}

// Downloader fetches a remote export and returns its body.
type Downloader interface {
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// Summary reports one import run.
type Summary struct {
	Sources    int   `json:"sources"`
	Rows       int   `json:"rows"`
	NoEmail    int   `json:"no_email"`
	Duplicates int   `json:"duplicates"`
	Upserted   int64 `json:"upserted"`
}

// Importer parses CSV/XLSX exports, merges them by email, and upserts the
// result.
type Importer struct {
	store LeadStore
	http  Downloader
	ftp   Downloader
}

// New creates an Importer. HTTP(S) and FTP URLs are fetched through the
// respective downloaders; local paths are read directly.
func New(store LeadStore, httpDownloader, ftpDownloader Downloader) *Importer {
	return &Importer{store: store, http: httpDownloader, ftp: ftpDownloader}
}

// Run imports every source (local path, http(s) URL, or ftp URL), merges
// rows across sources by email, and upserts the merged set.
func (i *Importer) Run(ctx context.Context, sources []string) (*Summary, error) {
	log := zap.L().With(zap.String("component", "importer"))

	summary := &Summary{Sources: len(sources)}
	merged := newMergeSet()
	for _, src := range sources {
		leads, err := i.parseSource(ctx, src)
		if err != nil {
			return summary, eris.Wrapf(err, "import: source %s", src)
		}
		log.Info("parsed source", zap.String("source", src), zap.Int("rows", len(leads)))
		for _, l := range leads {
			summary.Rows++
			if l.Email == "" {
				summary.NoEmail++
				continue
			}
			if dup := merged.add(l); dup {
				summary.Duplicates++
			}
		}
	}

	n, err := i.store.UpsertLeads(ctx, merged.leads())
	if err != nil {
		return summary, eris.Wrap(err, "import: upsert")
	}
	summary.Upserted = n

	log.Info("import complete",
		zap.Int("rows", summary.Rows),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int64("upserted", n),
	)
	return summary, nil
}

func (i *Importer) parseSource(ctx context.Context, src string) ([]model.Lead, error) {
	switch {
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return i.parseRemote(ctx, src, i.http.Download)
	case strings.HasPrefix(src, "ftp://"):
		return i.parseRemote(ctx, src, i.ftp.Download)
	case strings.EqualFold(filepath.Ext(src), ".xlsx"):
		rows, err := fetcher.ReadXLSX(src, fetcher.XLSXOptions{})
		if err != nil {
			return nil, err
		}
		return leadsFromRows(rows), nil
	default:
		f, err := os.Open(src)
		if err != nil {
			return nil, eris.Wrapf(err, "import: open %s", src)
		}
		defer f.Close() //nolint:errcheck
		return ParseCSV(ctx, f)
	}
}

type downloadFunc func(ctx context.Context, url string) (io.ReadCloser, error)

func (i *Importer) parseRemote(ctx context.Context, src string, download downloadFunc) ([]model.Lead, error) {
	body, err := download(ctx, src)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	if strings.EqualFold(filepath.Ext(src), ".xlsx") {
		// tealeg needs a seekable file, so spool to disk first.
		tmp, err := os.CreateTemp("", "funnel-import-*.xlsx")
		if err != nil {
			return nil, eris.Wrap(err, "import: temp file")
		}
		defer os.Remove(tmp.Name()) //nolint:errcheck
		if _, err := io.Copy(tmp, body); err != nil {
			tmp.Close()
			return nil, eris.Wrap(err, "import: spool xlsx")
		}
		tmp.Close()
		rows, err := fetcher.ReadXLSX(tmp.Name(), fetcher.XLSXOptions{})
		if err != nil {
			return nil, err
		}
		return leadsFromRows(rows), nil
	}
	return ParseCSV(ctx, body)
}

// ParseCSV reads an export with a header row and maps each row to a Lead.
func ParseCSV(ctx context.Context, r io.Reader) ([]model.Lead, error) {
	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	var cols columnMap
	var leads []model.Lead
	for row := range rowCh {
		if cols == nil {
			cols = mapColumns(<-headerCh)
		}
		leads = append(leads, cols.lead(row))
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return leads, nil
}

// leadsFromRows maps XLSX rows (header first) to leads.
func leadsFromRows(rows [][]string) []model.Lead {
	if len(rows) < 2 {
		return nil
	}
	cols := mapColumns(rows[0])
	leads := make([]model.Lead, 0, len(rows)-1)
	for _, row := range rows[1:] {
		leads = append(leads, cols.lead(row))
	}
	return leads
}

// columnMap maps lead fields to column indexes; extra columns are kept by
// index for the raw scrap blob.
type columnMap map[string]int

var headerAliases = map[string]string{
	"email":        "email",
	"emailaddress": "email",
	"phone":        "phone",
	"phonenumber":  "phone",
	"mobile":       "phone",
	"firstname":    "first_name",
	"lastname":     "last_name",
	"propertyname": "property_name",
	"company":      "property_name",
	"companyname":  "property_name",
	"city":         "city",
	"country":      "country",
	"countrycode":  "country",
	"rawscrap":     "raw_scrap",
	"notes":        "raw_scrap",
}

var nonAlnumHeaderRe = regexp.MustCompile(`[^a-z0-9]+`)

func mapColumns(header []string) columnMap {
	cols := make(columnMap, len(header))
	for idx, h := range header {
		key := nonAlnumHeaderRe.ReplaceAllString(strings.ToLower(h), "")
		if field, ok := headerAliases[key]; ok {
			if _, taken := cols[field]; !taken {
				cols[field] = idx
			}
		}
	}
	return cols
}

func (c columnMap) lead(row []string) model.Lead {
	get := func(field string) string {
		idx, ok := c[field]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}
	return model.Lead{
		Email:        strings.ToLower(get("email")),
		Phone:        get("phone"),
		FirstName:    get("first_name"),
		LastName:     get("last_name"),
		PropertyName: get("property_name"),
		City:         get("city"),
		Country:      get("country"),
		RawScrap:     get("raw_scrap"),
	}
}

// mergeSet merges leads by lowercased email: the first row wins, later
// duplicates only fill fields the first row left blank.
type mergeSet struct {
	order  []string
	byMail map[string]*model.Lead
}

func newMergeSet() *mergeSet {
	return &mergeSet{byMail: make(map[string]*model.Lead)}
}

func (m *mergeSet) add(l model.Lead) (duplicate bool) {
	key := strings.ToLower(l.Email)
	existing, ok := m.byMail[key]
	if !ok {
		l.Email = key
		m.byMail[key] = &l
		m.order = append(m.order, key)
		return false
	}
	fillBlank(&existing.Phone, l.Phone)
	fillBlank(&existing.FirstName, l.FirstName)
	fillBlank(&existing.LastName, l.LastName)
	fillBlank(&existing.PropertyName, l.PropertyName)
	fillBlank(&existing.City, l.City)
	fillBlank(&existing.Country, l.Country)
	fillBlank(&existing.RawScrap, l.RawScrap)
	return true
}

func fillBlank(dst *string, val string) {
	if *dst == "" && val != "" {
		*dst = val
	}
}

func (m *mergeSet) leads() []model.Lead {
	out := make([]model.Lead, 0, len(m.order))
	for _, key := range m.order {
		out = append(out, *m.byMail[key])
	}
	return out
}
