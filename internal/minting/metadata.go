package minting

import (
	"fmt"
	"math/big"

	"bookpub/internal/queue"
)

// Attribute is one trait of a token.
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// TokenMetadata describes a single minted copy.
type TokenMetadata struct {
	Image       string      `json:"image"`
	ExternalURL string      `json:"external_url"`
	Description string      `json:"description"`
	Name        string      `json:"name"`
	Attributes  []Attribute `json:"attributes"`
}

// BuildTokenMetadata renders the metadata of token id for item.
func BuildTokenMetadata(item *queue.Item, storeURL string, id *big.Int) TokenMetadata {
	return TokenMetadata{
		Image:       "ar://" + item.CoverStorageID,
		ExternalURL: fmt.Sprintf("%s/store/%s/%s", storeURL, item.AssetClassID, id),
		Description: fmt.Sprintf("Copy #%s of %s", id, item.Title),
		Name:        fmt.Sprintf("%s #%s", item.Title, id),
		Attributes: []Attribute{
			{TraitType: "Author", Value: item.AuthorName},
			{TraitType: "Publisher", Value: item.Publisher},
		},
	}
}
