package reference

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/kirillkom/kpi-benchmark/internal/core/ports"
)

// Param is the query parameter that carries the durable evaluation id.
const Param = "evaluation_id"

// PersistFunc is told about every address change so a host can keep it
// across restarts.
type PersistFunc func(address string) error

// QueryReference keeps the durable evaluation id in the query string of an
// application address, next to whatever other parameters the host uses.
type QueryReference struct {
	mu      sync.Mutex
	address *url.URL
	persist PersistFunc
}

func NewQueryReference(rawAddress string, persist PersistFunc) (*QueryReference, error) {
	if strings.TrimSpace(rawAddress) == "" {
		rawAddress = "/"
	}
	u, err := url.Parse(rawAddress)
	if err != nil {
		return nil, fmt.Errorf("parse address %q: %w", rawAddress, err)
	}
	return &QueryReference{address: u, persist: persist}, nil
}

// Get returns the id when the parameter holds a positive integer. A parameter
// holding anything else is reported as an error so the caller can clear it.
func (r *QueryReference) Get() (int64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q := r.address.Query()
	if !q.Has(Param) {
		return 0, false, nil
	}
	raw := strings.TrimSpace(q.Get(Param))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false, fmt.Errorf("%s=%q is not a valid evaluation id", Param, raw)
	}
	return id, true, nil
}

func (r *QueryReference) Set(id int64) error {
	if id <= 0 {
		return fmt.Errorf("set reference: invalid id %d", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	q := r.address.Query()
	q.Set(Param, strconv.FormatInt(id, 10))
	return r.updateLocked(q)
}

// Clear drops the parameter. Clearing an absent parameter is a no-op.
func (r *QueryReference) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q := r.address.Query()
	if !q.Has(Param) {
		return nil
	}
	q.Del(Param)
	return r.updateLocked(q)
}

// Address returns the current address including the reference.
func (r *QueryReference) Address() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.address.String()
}

func (r *QueryReference) updateLocked(q url.Values) error {
	r.address.RawQuery = q.Encode()
	if r.persist == nil {
		return nil
	}
	if err := r.persist(r.address.String()); err != nil {
		return fmt.Errorf("persist address: %w", err)
	}
	return nil
}

var _ ports.SessionReference = (*QueryReference)(nil)
