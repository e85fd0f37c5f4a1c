package models

import (
	"strings"
	"time"
)

// Domain categories. Free-form values are rejected at the API boundary.
const (
	CategoryMS    = "MS"
	CategoryWP    = "WP"
	CategoryLP    = "LP"
	CategoryRTP   = "RTP"
	CategoryOther = "Other"
)

// ValidCategory reports whether c is one of the known category values.
func ValidCategory(c string) bool {
	switch c {
	case CategoryMS, CategoryWP, CategoryLP, CategoryRTP, CategoryOther:
		return true
	}
	return false
}

// Domain is the canonical record for one tracked domain. Three field groups
// are owned by the three sync operations (registrar, DNS, content filter);
// the user-owned group is never written by any sync.
type Domain struct {
	ID          int64   `json:"id" db:"id"`
	RegistrarID *string `json:"registrar_id,omitempty" db:"registrar_id"`
	Name        string  `json:"name" db:"name"`

	// Registrar-sourced; overwritten wholesale on every registrar sync.
	Owner        *string   `json:"owner,omitempty" db:"owner"`
	RegisteredOn *string   `json:"registered_on,omitempty" db:"registered_on"`
	IsExpired    bool      `json:"is_expired" db:"is_expired"`
	IsLocked     bool      `json:"is_locked" db:"is_locked"`
	AutoRenew    bool      `json:"auto_renew" db:"auto_renew"`
	WhoisGuard   *string   `json:"whois_guard,omitempty" db:"whois_guard"`
	IsPremium    *bool     `json:"is_premium,omitempty" db:"is_premium"`
	UsesOwnDNS   *bool     `json:"uses_own_dns,omitempty" db:"uses_own_dns"`
	ExpiryDate   time.Time `json:"expiry_date" db:"expiry_date"`

	// DNS-sourced; only written when a lookup returns at least one record.
	NameServer1 *string `json:"name_server1,omitempty" db:"name_server1"`
	NameServer2 *string `json:"name_server2,omitempty" db:"name_server2"`

	// Blocked is written only by the content-filter refresh, only for rows
	// with IsUsed set.
	Blocked bool `json:"blocked" db:"blocked"`

	// User-owned; never modified by any sync.
	Description *string `json:"description,omitempty" db:"description"`
	Category    *string `json:"category,omitempty" db:"category"`
	IsUsed      bool    `json:"is_used" db:"is_used"`
	IsDefense   bool    `json:"is_defense" db:"is_defense"`
	IsLinkAlt   bool    `json:"is_link_alt" db:"is_link_alt"`
	GroupID     *int64  `json:"group_id,omitempty" db:"group_id"`

	// Active mirrors !IsExpired; kept for backward compatibility.
	Active bool `json:"active" db:"active"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NameServers returns the non-empty stored nameservers in order.
func (d *Domain) NameServers() []string {
	ns := make([]string, 0, 2)
	if d.NameServer1 != nil && *d.NameServer1 != "" {
		ns = append(ns, *d.NameServer1)
	}
	if d.NameServer2 != nil && *d.NameServer2 != "" {
		ns = append(ns, *d.NameServer2)
	}
	return ns
}

// NameKey normalizes a domain name for matching: lowercase, trimmed.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// StripWWW removes a single leading "www." from an already-normalized name.
func StripWWW(key string) string {
	return strings.TrimPrefix(key, "www.")
}
