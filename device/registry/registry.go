// Package registry is a read-only, thread-safe lookup table of the
// devices bound to an account's home, built once from an
// account.HomeData snapshot.
//
// This is grounded on core/contact's ContactManager: a concurrency-safe
// store keyed by device identity with helper lookups over an internal
// slice/map. Unlike ContactManager, a Registry never mutates after
// construction — there is no eviction or overwrite policy, since the
// device list only changes across a fresh account login.
package registry

import (
	"errors"
	"sync"

	"github.com/go-roborock/roborock/account"
)

// ErrDeviceNotFound is returned when a lookup finds no device with the
// given DUID.
var ErrDeviceNotFound = errors.New("registry: device not found")

// Registry is an immutable, concurrency-safe lookup of device records
// by DUID.
type Registry struct {
	mu      sync.RWMutex
	byDUID  map[string]account.DeviceRecord
	ordered []string
}

// New builds a Registry from a decoded home-data snapshot. Devices with
// duplicate DUIDs keep the first occurrence (owned devices are listed
// before received ones in account.HomeData.AllDevices).
func New(home *account.HomeData) *Registry {
	devices := home.AllDevices()
	r := &Registry{
		byDUID:  make(map[string]account.DeviceRecord, len(devices)),
		ordered: make([]string, 0, len(devices)),
	}
	for _, d := range devices {
		if _, exists := r.byDUID[d.DUID]; exists {
			continue
		}
		r.byDUID[d.DUID] = d
		r.ordered = append(r.ordered, d.DUID)
	}
	return r
}

// Get returns the device record for duid, or ErrDeviceNotFound.
func (r *Registry) Get(duid string) (account.DeviceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byDUID[duid]
	if !ok {
		return account.DeviceRecord{}, ErrDeviceNotFound
	}
	return d, nil
}

// List returns a copy of all known device records, in stable order.
func (r *Registry) List() []account.DeviceRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]account.DeviceRecord, 0, len(r.ordered))
	for _, duid := range r.ordered {
		out = append(out, r.byDUID[duid])
	}
	return out
}

// Count returns the number of known devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ordered)
}
