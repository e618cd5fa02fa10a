package importer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/glampguide/funnel-cli/internal/fetcher"
	"github.com/glampguide/funnel-cli/internal/model"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) UpsertLeads(ctx context.Context, leads []model.Lead) (int64, error) {
	args := m.Called(ctx, leads)
	return args.Get(0).(int64), args.Error(1)
}

const sampleCSV = `Email,First Name,Last Name,Company,Phone,City,Country
anna@mazury.pl,Anna,Kowalska,Camp Mazury,+48 601 234 567,Mikolajki,PL
jan@tatry.pl,Jan,Nowak,Glamp Tatry,,Zakopane,PL
`

func TestParseCSV_MapsHeaderAliases(t *testing.T) {
	leads, err := ParseCSV(context.Background(), strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, leads, 2)

	assert.Equal(t, "anna@mazury.pl", leads[0].Email)
	assert.Equal(t, "Anna", leads[0].FirstName)
	assert.Equal(t, "Camp Mazury", leads[0].PropertyName)
	assert.Equal(t, "+48 601 234 567", leads[0].Phone)
	assert.Equal(t, "PL", leads[0].Country)
	assert.Equal(t, "", leads[1].Phone)
}

func TestParseCSV_LowercasesEmail(t *testing.T) {
	leads, err := ParseCSV(context.Background(), strings.NewReader("Email\nAnna@Mazury.PL\n"))
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "anna@mazury.pl", leads[0].Email)
}

func TestParseCSV_HeaderOnly(t *testing.T) {
	leads, err := ParseCSV(context.Background(), strings.NewReader("email,phone\n"))
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestRun_MergesDuplicatesAcrossSources(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first := filepath.Join(dir, "campaign-a.csv")
	require.NoError(t, writeFile(first, "email,first name,company\nanna@mazury.pl,Anna,\n"))
	second := filepath.Join(dir, "campaign-b.csv")
	require.NoError(t, writeFile(second, "email,last name,company\nanna@mazury.pl,Kowalska,Camp Mazury\nola@bory.pl,Wisniewska,Bory Glamping\n"))

	st := &mockStore{}
	st.On("UpsertLeads", ctx, mock.MatchedBy(func(leads []model.Lead) bool {
		// One merged lead; the second export filled the blanks.
		return len(leads) == 2 &&
			leads[0].Email == "anna@mazury.pl" &&
			leads[0].FirstName == "Anna" &&
			leads[0].LastName == "Kowalska" &&
			leads[0].PropertyName == "Camp Mazury"
	})).Return(int64(2), nil)

	imp := New(st, fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}), fetcher.NewFTPFetcher(fetcher.FTPOptions{}))
	summary, err := imp.Run(ctx, []string{first, second})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Sources)
	assert.Equal(t, 3, summary.Rows)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, 0, summary.NoEmail)
	assert.Equal(t, int64(2), summary.Upserted)
	st.AssertExpectations(t)
}

func TestRun_CountsRowsWithoutEmail(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "export.csv")
	require.NoError(t, writeFile(path, "email,city\n,Sopot\nb@x.com,Gdansk\n"))

	st := &mockStore{}
	st.On("UpsertLeads", ctx, mock.Anything).Return(int64(1), nil)

	imp := New(st, fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}), fetcher.NewFTPFetcher(fetcher.FTPOptions{}))
	summary, err := imp.Run(ctx, []string{path})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.NoEmail)
}

func TestRun_XLSXSource(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "export.xlsx")

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Leads")
	require.NoError(t, err)
	addRow(sheet, "Email", "First Name", "Property Name")
	addRow(sheet, "ola@bory.pl", "Ola", "Bory Tucholskie Glamping")
	require.NoError(t, f.Save(path))

	st := &mockStore{}
	st.On("UpsertLeads", ctx, mock.MatchedBy(func(leads []model.Lead) bool {
		return len(leads) == 1 &&
			leads[0].Email == "ola@bory.pl" &&
			leads[0].PropertyName == "Bory Tucholskie Glamping"
	})).Return(int64(1), nil)

	imp := New(st, fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}), fetcher.NewFTPFetcher(fetcher.FTPOptions{}))
	summary, err := imp.Run(ctx, []string{path})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Rows)
	st.AssertExpectations(t)
}

func TestRun_HTTPSource(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleCSV))
	}))
	t.Cleanup(srv.Close)

	st := &mockStore{}
	st.On("UpsertLeads", ctx, mock.MatchedBy(func(leads []model.Lead) bool {
		return len(leads) == 2 && leads[0].Email == "anna@mazury.pl"
	})).Return(int64(2), nil)

	imp := New(st, fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}), fetcher.NewFTPFetcher(fetcher.FTPOptions{}))
	summary, err := imp.Run(ctx, []string{srv.URL + "/export.csv"})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Rows)
	st.AssertExpectations(t)
}

func TestRun_MissingFile(t *testing.T) {
	st := &mockStore{}
	imp := New(st, fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}), fetcher.NewFTPFetcher(fetcher.FTPOptions{}))

	_, err := imp.Run(context.Background(), []string{"/nonexistent/export.csv"})
	require.Error(t, err)
	st.AssertNotCalled(t, "UpsertLeads")
}

func addRow(sheet *xlsx.Sheet, cells ...string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().Value = c
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
