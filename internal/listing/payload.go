package listing

import (
	"math"
	"strings"

	"bookpub/internal/queue"
)

// LocalizedText carries the same text in each storefront locale.
type LocalizedText struct {
	EN string `json:"en"`
	ZH string `json:"zh"`
}

func localized(s string) LocalizedText {
	return LocalizedText{EN: s, ZH: s}
}

// Price is one purchasable edition.
type Price struct {
	Name               LocalizedText `json:"name"`
	Description        LocalizedText `json:"description"`
	PriceInDecimal     int64         `json:"priceInDecimal"`
	Price              float64       `json:"price"`
	Stock              int           `json:"stock"`
	IsAutoDeliver      bool          `json:"isAutoDeliver"`
	IsAllowCustomPrice bool          `json:"isAllowCustomPrice"`
	IsUnlisted         bool          `json:"isUnlisted"`
	AutoMemo           string        `json:"autoMemo"`
}

// Payload is the body of a new-listing request.
type Payload struct {
	DefaultPaymentCurrency  string   `json:"defaultPaymentCurrency"`
	ConnectedWallets        []string `json:"connectedWallets"`
	ModeratorWallets        []string `json:"moderatorWallets"`
	Prices                  []Price  `json:"prices"`
	MustClaimToView         bool     `json:"mustClaimToView"`
	EnableCustomMessagePage bool     `json:"enableCustomMessagePage"`
	HideDownload            bool     `json:"hideDownload"`
}

// BuildPayload renders the single-edition listing for item.
func BuildPayload(item *queue.Item, currency string, moderators []string) Payload {
	if currency == "" {
		currency = "USD"
	}
	wallets := make([]string, 0, len(moderators))
	for _, w := range moderators {
		if w = strings.TrimSpace(w); w != "" {
			wallets = append(wallets, w)
		}
	}
	memo := strings.TrimSpace(item.AutoMemo)
	return Payload{
		DefaultPaymentCurrency: currency,
		ModeratorWallets:       wallets,
		Prices: []Price{{
			Name:               localized(item.EditionName),
			Description:        localized(item.EditionDescription),
			PriceInDecimal:     int64(math.Round(item.ListPrice * 100)),
			Price:              item.ListPrice,
			Stock:              0,
			IsAutoDeliver:      item.AutoDeliver,
			IsAllowCustomPrice: true,
			IsUnlisted:         false,
			AutoMemo:           memo,
		}},
		MustClaimToView:         true,
		EnableCustomMessagePage: memo != "",
		HideDownload:            item.EnableDRM,
	}
}
