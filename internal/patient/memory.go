package patient

import (
	"context"
	"sync"
)

// MemoryDirectory is a Directory backed by a map. Used by tests and local runs.
type MemoryDirectory struct {
	mu     sync.RWMutex
	byID   map[string]Patient
	byUHID map[string]string
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		byID:   make(map[string]Patient),
		byUHID: make(map[string]string),
	}
}

func (d *MemoryDirectory) Add(p Patient) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p.UHID != nil && *p.UHID != "" {
		if owner, ok := d.byUHID[*p.UHID]; ok && owner != p.ID {
			return ErrDuplicateUHID
		}
		d.byUHID[*p.UHID] = p.ID
	}
	d.byID[p.ID] = p
	return nil
}

func (d *MemoryDirectory) Exists(_ context.Context, id string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.byID[id]
	return ok, nil
}

func (d *MemoryDirectory) Get(_ context.Context, id string) (*Patient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (d *MemoryDirectory) GetByUHID(_ context.Context, uhid string) (*Patient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byUHID[uhid]
	if !ok {
		return nil, ErrNotFound
	}
	p := d.byID[id]
	return &p, nil
}
