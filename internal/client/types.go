// Package client holds the tooling that drives a pollstore server: single
// and batch uploads, directory scanning, and probes for the long-poll and
// connection budget behaviors.
package client

import (
	"errors"
	"fmt"
	"net/http"
	"os"
)

// ErrLocalFileMissing is returned before any network call when a local file
// named in an Item does not exist or is not a regular file.
var ErrLocalFileMissing = errors.New("local file missing")

// Item pairs a local file with the path it is stored under on the server.
type Item struct {
	Local  string
	Remote string
}

// Result is the outcome of one request. Err is set when the request failed
// at the transport level; otherwise Status holds the HTTP status.
type Result struct {
	Item   Item
	Status int
	Err    error
}

// OK reports whether the server answered 200.
func (r Result) OK() bool {
	return r.Err == nil && r.Status == http.StatusOK
}

func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("PUT /%s -> Exception: %v", r.Item.Remote, r.Err)
	}
	return fmt.Sprintf("PUT /%s -> %d %s", r.Item.Remote, r.Status, http.StatusText(r.Status))
}

// CheckItems verifies every local file exists so a batch fails fast.
func CheckItems(items []Item) error {
	for _, it := range items {
		info, err := os.Stat(it.Local)
		if err != nil || !info.Mode().IsRegular() {
			return fmt.Errorf("%w: %s", ErrLocalFileMissing, it.Local)
		}
	}
	return nil
}

func readLocal(item Item) ([]byte, error) {
	data, err := os.ReadFile(item.Local)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrLocalFileMissing, item.Local)
	}
	return data, nil
}
