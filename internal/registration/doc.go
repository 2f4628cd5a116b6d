// Package registration creates the on-chain asset class for a book once its
// files are stored. The class metadata embeds the content record and points
// at the stored cover and ebook.
package registration
