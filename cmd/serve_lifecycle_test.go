package main

import (
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownGracefully_DrainsInflightRequests(t *testing.T) {
	started := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("GET /slow", func(w http.ResponseWriter, r *http.Request) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte("done"))
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: mux}
	go srv.Serve(ln) //nolint:errcheck

	type result struct {
		body string
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/slow")
		if err != nil {
			resCh <- result{err: err}
			return
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		resCh <- result{body: string(body), err: err}
	}()

	// Shut down while the request is in flight; the drain must let it finish.
	<-started
	require.NoError(t, shutdownGracefully(srv, time.Second))

	select {
	case res := <-resCh:
		require.NoError(t, res.err)
		assert.Equal(t, "done", res.body)
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight request never completed")
	}
}

func TestShutdownGracefully_TimesOutOnHungHandler(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("GET /hung", func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: mux}
	go srv.Serve(ln) //nolint:errcheck

	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/hung")
		if err == nil {
			resp.Body.Close()
		}
	}()

	<-started
	err = shutdownGracefully(srv, 20*time.Millisecond)
	assert.Error(t, err)
	close(release)
}
