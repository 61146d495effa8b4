package memory

import (
	"context"
	"strings"
	"sync"

	"donationhub/internal/domain"
)

// Directory keeps registrations and display names in insertion order.
type Directory struct {
	mu            sync.RWMutex
	registrations []domain.RegistrationEntry
	byCode        map[string]string
	displayNames  []domain.DisplayNameEntry
	displayIndex  map[string]int
}

func NewDirectory() *Directory {
	return &Directory{
		byCode:       make(map[string]string),
		displayIndex: make(map[string]int),
	}
}

func (d *Directory) IdentityForCode(_ context.Context, code string) (string, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	identity, ok := d.byCode[code]
	return identity, ok, nil
}

func (d *Directory) DisplayName(_ context.Context, identity string) (string, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	idx, ok := d.displayIndex[identity]
	if !ok {
		return "", false, nil
	}
	return d.displayNames[idx].DisplayName, true, nil
}

func (d *Directory) Snapshot(_ context.Context) (domain.DirectorySnapshot, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return domain.DirectorySnapshot{
		Registrations: append([]domain.RegistrationEntry(nil), d.registrations...),
		DisplayNames:  append([]domain.DisplayNameEntry(nil), d.displayNames...),
	}, nil
}

func (d *Directory) Register(_ context.Context, identity, newCode string) (domain.RegistrationEntry, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.registrations {
		if strings.EqualFold(r.Identity, identity) {
			return r, false, nil
		}
	}
	if _, taken := d.byCode[newCode]; taken {
		return domain.RegistrationEntry{}, false, domain.ErrCodeExhausted
	}
	entry := domain.RegistrationEntry{Code: newCode, Identity: identity}
	d.registrations = append(d.registrations, entry)
	d.byCode[newCode] = identity
	return entry, true, nil
}

func (d *Directory) SetDisplayName(_ context.Context, identity, displayName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if idx, ok := d.displayIndex[identity]; ok {
		d.displayNames[idx].DisplayName = displayName
		return nil
	}
	d.displayIndex[identity] = len(d.displayNames)
	d.displayNames = append(d.displayNames, domain.DisplayNameEntry{Identity: identity, DisplayName: displayName})
	return nil
}

func (d *Directory) DisplayNames(_ context.Context) ([]domain.DisplayNameEntry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]domain.DisplayNameEntry(nil), d.displayNames...), nil
}
