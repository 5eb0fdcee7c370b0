package rfc

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"net/http/httputil"
	"strconv"
)

func readBody(resp *http.Response) ([]byte, error) {
	if resp.Body == nil || resp.Body == http.NoBody {
		return []byte{}, nil
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func withBody(resp *http.Response, body []byte) *http.Response {
	c := *resp
	c.Header = resp.Header.Clone()
	if c.Header == nil {
		c.Header = http.Header{}
	}
	c.Body = io.NopCloser(bytes.NewReader(body))
	c.ContentLength = int64(len(body))

	return &c
}

// Clone reads the body once and returns two responses with independent bodies
func Clone(resp *http.Response) (*http.Response, *http.Response, error) {
	body, err := readBody(resp)
	if err != nil {
		return nil, nil, err
	}

	return withBody(resp, body), withBody(resp, body), nil
}

// Snapshot returns the HTTP/1.1 wire representation of the response, the body
// is consumed
func Snapshot(resp *http.Response) ([]byte, error) {
	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	c := withBody(resp, body)
	c.Proto, c.ProtoMajor, c.ProtoMinor = "HTTP/1.1", 1, 1
	c.TransferEncoding = nil
	c.Close = false
	c.Request = nil
	c.Header.Del("Transfer-Encoding")
	c.Header.Set("Content-Length", strconv.Itoa(len(body)))

	return httputil.DumpResponse(c, true)
}

// Restore reads back a snapshot as a response to req
func Restore(snapshot []byte, req *http.Request) (*http.Response, error) {
	return http.ReadResponse(bufio.NewReader(bytes.NewReader(snapshot)), req)
}
