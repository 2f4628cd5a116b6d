package registration

import (
	"strings"
	"time"

	"bookpub/internal/contentid"
	"bookpub/internal/queue"
)

const (
	classSymbol           = "BOOK"
	collectionID          = "nft_book"
	collectionName        = "NFT Book"
	collectionDescription = "NFT Book collection"
	defaultLicense        = "All Rights Reserved"
)

// Author is written as a bare name unless a description is present.
type Author struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// DownloadableURL points readers at the stored ebook.
type DownloadableURL struct {
	URL       string `json:"url"`
	Type      string `json:"type"`
	FileName  string `json:"fileName"`
	Encrypted bool   `json:"encrypted,omitempty"`
}

// ContentMetadata is the content record embedded in the class metadata.
type ContentMetadata struct {
	Type                string            `json:"@type"`
	Name                string            `json:"name"`
	Description         string            `json:"description"`
	Author              any               `json:"author,omitempty"`
	Publisher           string            `json:"publisher,omitempty"`
	ISBN                string            `json:"isbn,omitempty"`
	InLanguage          string            `json:"inLanguage,omitempty"`
	DatePublished       string            `json:"datePublished,omitempty"`
	Keywords            []string          `json:"keywords,omitempty"`
	UsageInfo           string            `json:"usageInfo"`
	ThumbnailURL        string            `json:"thumbnailUrl"`
	ContentFingerprints []string          `json:"contentFingerprints"`
	SameAs              []string          `json:"sameAs,omitempty"`
	DownloadableURLs    []DownloadableURL `json:"downloadableUrls"`
}

// ClassMetadata is serialized into the class config metadata string.
type ClassMetadata struct {
	ContentMetadata
	Symbol                       string `json:"symbol"`
	Image                        string `json:"image"`
	ExternalLink                 string `json:"external_link"`
	NFTMetaCollectionID          string `json:"nft_meta_collection_id"`
	NFTMetaCollectionName        string `json:"nft_meta_collection_name"`
	NFTMetaCollectionDescription string `json:"nft_meta_collection_description"`
	RecordTimestamp              string `json:"recordTimestamp"`
}

// BuildMetadata assembles the class metadata for an item whose files are
// stored.
func BuildMetadata(item *queue.Item, externalLink string, now time.Time) ClassMetadata {
	cover := "ar://" + item.CoverStorageID
	book := bookLink(item)
	format := item.EbookFormat()
	fileName := strings.TrimSpace(item.EbookFilename())
	if fileName == "" {
		fileName = item.Title + "." + format
	}

	fingerprints := []string{cover, book}
	if contentid.Valid(item.BookContentID) {
		fingerprints = append(fingerprints, "ipfs://"+item.BookContentID)
	}

	content := ContentMetadata{
		Type:                "Book",
		Name:                item.Title,
		Description:         item.Description,
		Author:              author(item),
		Publisher:           item.Publisher,
		ISBN:                item.ISBN,
		InLanguage:          item.Language,
		DatePublished:       normalizeDate(item.PublishDate),
		Keywords:            item.Tags,
		UsageInfo:           defaultLicense,
		ThumbnailURL:        cover,
		ContentFingerprints: dedupe(fingerprints),
		SameAs:              []string{book + "?name=" + fileName},
		DownloadableURLs: []DownloadableURL{{
			URL:       book,
			Type:      format,
			FileName:  fileName,
			Encrypted: item.BookStorageKey != "",
		}},
	}
	return ClassMetadata{
		ContentMetadata:              content,
		Symbol:                       classSymbol,
		Image:                        cover,
		ExternalLink:                 externalLink,
		NFTMetaCollectionID:          collectionID,
		NFTMetaCollectionName:        collectionName,
		NFTMetaCollectionDescription: collectionDescription,
		RecordTimestamp:              now.UTC().Format(time.RFC3339),
	}
}

func bookLink(item *queue.Item) string {
	if link := strings.TrimSpace(item.BookStorageLink); link != "" {
		return link
	}
	return "ar://" + item.BookStorageID
}

func author(item *queue.Item) any {
	name := strings.TrimSpace(item.AuthorName)
	if name == "" {
		return nil
	}
	if desc := strings.TrimSpace(item.AuthorDescription); desc != "" {
		return Author{Name: name, Description: desc}
	}
	return name
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006/01/02", "2006-1-2", "2006/1/2", "2006"}

// normalizeDate renders parseable dates as YYYY-MM-DD and keeps anything
// else verbatim.
func normalizeDate(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			if layout == "2006" {
				return value
			}
			return t.Format("2006-01-02")
		}
	}
	return value
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
