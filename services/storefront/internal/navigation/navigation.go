// Package navigation is the per-request router view handed to product
// items: route parameters captured when the request arrived and the
// navigation the item asked for, if any.
package navigation

import (
	"strings"
	"sync"
)

type Request struct {
	params map[string]string

	mu     sync.Mutex
	target string
	count  int
}

// NewRequest snapshots params. Later changes to the map are not seen.
func NewRequest(params map[string]string) *Request {
	copied := make(map[string]string, len(params))
	for k, v := range params {
		copied[k] = v
	}

	return &Request{params: copied}
}

func (r *Request) Param(name string) (string, bool) {
	v, ok := r.params[name]
	return v, ok
}

// Navigate records path. The last call wins.
func (r *Request) Navigate(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.target = path
	r.count++
}

// Location returns the absolute path of the requested navigation.
func (r *Request) Location() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == 0 {
		return "", false
	}
	return "/" + strings.TrimPrefix(r.target, "/"), true
}

// Count reports how many navigations were requested.
func (r *Request) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
