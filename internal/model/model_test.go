package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransactionCategoryString(t *testing.T) {
	cat := "Food"
	assert.Equal(t, "Food", Transaction{Category: &cat}.CategoryString())
	assert.Equal(t, "", Transaction{}.CategoryString())
}

func TestAccountLinked(t *testing.T) {
	tests := []struct {
		name string
		acct Account
		want bool
	}{
		{"feed with credential", Account{Source: SourceFeed, ExternalItemID: "item-1", AccessCredential: "access-x"}, true},
		{"feed without credential", Account{Source: SourceFeed, ExternalItemID: "item-1"}, false},
		{"feed without item", Account{Source: SourceFeed, AccessCredential: "access-x"}, false},
		{"upload", Account{Source: SourceUpload, ExternalItemID: "item-1", AccessCredential: "access-x"}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.acct.Linked(), tt.name)
	}
}
