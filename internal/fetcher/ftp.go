package fetcher

import (
	"context"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPOptions configures the FTP downloader.
type FTPOptions struct {
	Timeout time.Duration
}

// FTPFetcher pulls lead exports from partner FTP drops.
type FTPFetcher struct {
	timeout time.Duration
}

// NewFTPFetcher creates an FTPFetcher with the given options.
func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &FTPFetcher{timeout: timeout}
}

// Download retrieves the export at the given ftp:// URL. Closing the
// returned reader releases the server connection.
func (f *FTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	host, path, err := splitFTPURL(rawURL)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("fetching ftp export", zap.String("host", host), zap.String("path", path))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(f.timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "ftp: dial")
	}
	if err := conn.Login("anonymous", "anonymous@"); err != nil {
		conn.Quit() //nolint:errcheck
		return nil, eris.Wrap(err, "ftp: login")
	}
	resp, err := conn.Retr(path)
	if err != nil {
		conn.Quit() //nolint:errcheck
		return nil, eris.Wrapf(err, "ftp: retrieve %s", path)
	}

	return &ftpReader{resp: resp, conn: conn}, nil
}

// splitFTPURL returns the dialable host (port 21 when unspecified) and the
// file path of an ftp:// URL.
func splitFTPURL(rawURL string) (host, path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrap(err, "ftp: parse url")
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("ftp: expected ftp scheme, got %q", u.Scheme)
	}
	if u.Path == "" {
		return "", "", eris.New("ftp: url has no file path")
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}
	return host, u.Path, nil
}

// ftpReader ties the data stream to its control connection so one Close
// releases both.
type ftpReader struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (r *ftpReader) Read(p []byte) (int, error) {
	return r.resp.Read(p)
}

func (r *ftpReader) Close() error {
	respErr := r.resp.Close()
	quitErr := r.conn.Quit()
	if respErr != nil {
		return eris.Wrap(respErr, "ftp: close data stream")
	}
	if quitErr != nil {
		return eris.Wrap(quitErr, "ftp: quit")
	}
	return nil
}
