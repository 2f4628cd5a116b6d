// Package bulkimport turns a CSV of books into pipeline items and back.
//
// Parse reads an import file (or a results file from an earlier run, whose
// progress columns let the pipeline resume), Validate reports field errors
// per row, AttachFiles loads cover and ebook files from a directory, and
// WriteResults exports the outcome of a session.
package bulkimport
