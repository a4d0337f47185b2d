package vault

import (
	"context"
	"sync"

	"vouch/internal/vendorapi"
	id "vouch/pkg/domain"
)

// MemoryVault is an in-memory FieldService and CompletenessQuery for tests
// and local runs. It is not a real vault: values are held in the clear.
type MemoryVault struct {
	mu       sync.RWMutex
	fields   map[id.SubjectID]map[Field]string
	seqnos   map[id.SubjectID]Seqno
	degraded bool
}

func NewMemoryVault() *MemoryVault {
	return &MemoryVault{
		fields: make(map[id.SubjectID]map[Field]string),
		seqnos: make(map[id.SubjectID]Seqno),
	}
}

// Put stores plaintext fields for a subject and bumps its seqno.
func (v *MemoryVault) Put(subject id.SubjectID, values map[Field]string) Seqno {
	v.mu.Lock()
	defer v.mu.Unlock()
	existing, ok := v.fields[subject]
	if !ok {
		existing = make(map[Field]string)
		v.fields[subject] = existing
	}
	for field, value := range values {
		existing[field] = value
	}
	v.seqnos[subject]++
	return v.seqnos[subject]
}

// SetDegraded makes every decryption fail with ErrDecryptionUnavailable.
func (v *MemoryVault) SetDegraded(degraded bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.degraded = degraded
}

func (v *MemoryVault) GetFields(ctx context.Context, subject id.SubjectID, fields []Field, seqno Seqno) (map[Field]string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.degraded {
		return nil, ErrDecryptionUnavailable
	}
	if current := v.seqnos[subject]; seqno != 0 && seqno != current {
		return nil, ErrStaleSeqno
	}
	stored := v.fields[subject]
	out := make(map[Field]string, len(fields))
	for _, field := range fields {
		if value, ok := stored[field]; ok {
			out[field] = value
		}
	}
	return out, nil
}

func (v *MemoryVault) CurrentSeqno(ctx context.Context, subject id.SubjectID) (Seqno, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.degraded {
		return 0, ErrDecryptionUnavailable
	}
	return v.seqnos[subject], nil
}

func (v *MemoryVault) PopulatedFields(ctx context.Context, subject id.SubjectID) (map[Field]bool, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	populated := make(map[Field]bool)
	for field, value := range v.fields[subject] {
		if value != "" {
			populated[field] = true
		}
	}
	return populated, nil
}

// MemoryEntitlements is an in-memory EntitlementQuery.
type MemoryEntitlements struct {
	mu      sync.RWMutex
	enabled map[id.TenantID]map[vendorapi.API]bool
}

func NewMemoryEntitlements() *MemoryEntitlements {
	return &MemoryEntitlements{enabled: make(map[id.TenantID]map[vendorapi.API]bool)}
}

// Enable grants a tenant access to the given vendor APIs.
func (e *MemoryEntitlements) Enable(tenant id.TenantID, apis ...vendorapi.API) {
	e.mu.Lock()
	defer e.mu.Unlock()
	set, ok := e.enabled[tenant]
	if !ok {
		set = make(map[vendorapi.API]bool)
		e.enabled[tenant] = set
	}
	for _, api := range apis {
		set[api] = true
	}
}

func (e *MemoryEntitlements) EnabledVendors(ctx context.Context, tenant id.TenantID) (map[vendorapi.API]bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[vendorapi.API]bool, len(e.enabled[tenant]))
	for api, on := range e.enabled[tenant] {
		out[api] = on
	}
	return out, nil
}

// AllowAllEntitlements is an EntitlementQuery granting every tenant every
// vendor. Local runs only; production entitlements come from tenant config.
type AllowAllEntitlements struct{}

func (AllowAllEntitlements) EnabledVendors(ctx context.Context, tenant id.TenantID) (map[vendorapi.API]bool, error) {
	out := make(map[vendorapi.API]bool)
	for _, api := range vendorapi.All() {
		out[api] = true
	}
	return out, nil
}
