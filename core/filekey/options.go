// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package filekey

import (
	"github.com/juju/collections/set"
)

// WriteOptions holds the per write settings recorded on the root document.
type WriteOptions struct {
	// ChunkSize is the size in bytes of each chunk.
	ChunkSize int

	// Aliases are alternative names for the file.
	Aliases set.Strings

	// Metadata is arbitrary caller data stored on the root document.
	Metadata map[string]interface{}

	// ContentType is the MIME type of the file contents.
	ContentType string
}

// WithDefaults returns the options with unset fields filled in. A
// non-positive defaultChunkSize falls back to DefaultChunkSize.
func (o WriteOptions) WithDefaults(defaultChunkSize int) WriteOptions {
	if o.ChunkSize <= 0 {
		o.ChunkSize = defaultChunkSize
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Aliases == nil {
		o.Aliases = set.NewStrings()
	}
	if o.ContentType == "" {
		o.ContentType = DefaultContentType
	}
	return o
}
