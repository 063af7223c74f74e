package model

import "time"

// Account owns transactions. Upload accounts are plain containers; feed
// accounts carry the external item/account linkage and the sync cursor.
type Account struct {
	ID                string
	OwnerID           string
	Name              string
	Source            Source
	InstitutionName   string
	Mask              string
	ExternalItemID    string // groups accounts under one external connection
	ExternalAccountID string // one sub-account within the connection
	SyncCursor        string // "" until the first successful page
	AccessCredential  string
	CreatedAt         time.Time
}

// Linked reports whether the account can be synced from the external feed.
func (a Account) Linked() bool {
	return a.Source == SourceFeed && a.ExternalItemID != "" && a.AccessCredential != ""
}
