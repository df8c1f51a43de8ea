// Package storage names downloaded images and writes them to disk.
//
// Images for one run live in <base>/<search key>/. Generated names take the
// form <sanitized key>_<0-9999>.<format>; with original names kept, the URL's
// last path segment (without extension) is used instead.
//
// Writes go to a temporary file in the target directory which is then
// renamed into place, so a reader never observes a partial image.
package storage
