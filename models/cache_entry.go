package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// CacheEntry is one stored semantic cache record. The prompt is stored
// sanitized; the integrity hash covers prompt+response and is verified on
// every lookup.
type CacheEntry struct {
	ID             string           `json:"id"`
	Prompt         string           `json:"prompt"`
	Response       string           `json:"response"`
	Embedding      []float64        `json:"embedding"`
	IsolationKey   string           `json:"isolation_key"`
	ComplianceTags []ComplianceFlag `json:"compliance_tags"`
	Cost           float64          `json:"cost"`
	CreatedAt      time.Time        `json:"created_at"`
	AccessedAt     time.Time        `json:"accessed_at"`
	AccessCount    int64            `json:"access_count"`
	ExpiresAt      *time.Time       `json:"expires_at,omitempty"`
	IntegrityHash  string           `json:"integrity_hash"`
}

// NewCacheEntry creates an entry with generated id, timestamps and the
// integrity hash already computed.
func NewCacheEntry(prompt, response, isolationKey string) *CacheEntry {
	now := time.Now()
	e := &CacheEntry{
		ID:           uuid.New().String(),
		Prompt:       prompt,
		Response:     response,
		IsolationKey: isolationKey,
		CreatedAt:    now,
		AccessedAt:   now,
	}
	e.IntegrityHash = e.ComputeIntegrityHash()
	return e
}

// ComputeIntegrityHash returns the sha256 over prompt+response.
func (e *CacheEntry) ComputeIntegrityHash() string {
	sum := sha256.Sum256([]byte(e.Prompt + "\x00" + e.Response))
	return hex.EncodeToString(sum[:])
}

// VerifyIntegrity reports whether the stored hash still matches the content.
func (e *CacheEntry) VerifyIntegrity() bool {
	return e.IntegrityHash == e.ComputeIntegrityHash()
}

// IsExpired reports whether the entry's TTL has elapsed at now.
func (e *CacheEntry) IsExpired(now time.Time) bool {
	return e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}

// Touch updates access metadata on a cache hit.
func (e *CacheEntry) Touch(now time.Time) {
	e.AccessedAt = now
	e.AccessCount++
}

// HasComplianceTags reports whether the entry's tag set is a superset of
// required.
func (e *CacheEntry) HasComplianceTags(required []ComplianceFlag) bool {
	for _, want := range required {
		found := false
		for _, have := range e.ComplianceTags {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
