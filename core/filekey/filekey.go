// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package filekey derives the GridFS storage key of a logical file.
package filekey

import (
	"fmt"
	"regexp"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
)

const (
	// MissingIdentifier is returned when an operation needs the native id of
	// a stored file, but the key has not been assigned one.
	MissingIdentifier = errors.ConstError("missing native identifier")

	// DefaultChunkSize is the chunk size used when none is configured.
	DefaultChunkSize = 2 * 1024 * 1024

	// DefaultContentType is recorded for files written without a content
	// type.
	DefaultContentType = "application/octet-stream"
)

var nativeIDPattern = regexp.MustCompile(`^[0-9a-f]{24}$`)

// LogicalFile is the view of a file record held by the file collection
// layer that is needed to store its contents.
type LogicalFile struct {
	// ID is the external identifier of the file.
	ID string

	// CollectionName is the name of the file collection the file belongs
	// to.
	CollectionName string

	// Name is the optional human readable file name.
	Name string

	// NativeID is the native id assigned by an earlier write, if any.
	NativeID string

	// Metadata, ContentType and Aliases are recorded on the root document
	// when the file is written.
	Metadata    map[string]interface{}
	ContentType string
	Aliases     set.Strings
}

// WithNativeID returns a copy of the file carrying the given native id, for
// the caller to persist after a write.
func (f LogicalFile) WithNativeID(nativeID string) LogicalFile {
	f.NativeID = nativeID
	return f
}

// WriteOptions returns the write options carried by the file itself.
func (f LogicalFile) WriteOptions() WriteOptions {
	return WriteOptions{
		Aliases:     f.Aliases,
		Metadata:    f.Metadata,
		ContentType: f.ContentType,
	}
}

// Key addresses the chunks and root document of one file.
type Key struct {
	// NativeID is the 24 character hex form of the native id. It is empty
	// until the first write assigns one.
	NativeID string

	// Root is the namespace qualified bucket prefix.
	Root string

	// Filename is recorded on the root document.
	Filename string
}

// Derive computes the storage key of a file. The root is always the
// namespace prefix and the collection name joined by a dot, so collections
// sharing one database never share chunks or root documents.
func Derive(file LogicalFile, namespacePrefix string) Key {
	filename := file.Name
	if filename == "" {
		filename = file.CollectionName + "-" + file.ID
	}
	return Key{
		NativeID: file.NativeID,
		Root:     namespacePrefix + "." + file.CollectionName,
		Filename: filename,
	}
}

// HasNativeID reports whether a native id has been assigned.
func (k Key) HasNativeID() bool {
	return k.NativeID != ""
}

// WithNativeID returns a copy of the key with the native id set.
func (k Key) WithNativeID(nativeID string) Key {
	k.NativeID = nativeID
	return k
}

// RequireNativeID returns MissingIdentifier if no native id is assigned.
func (k Key) RequireNativeID() error {
	if !k.HasNativeID() {
		return errors.WithType(
			errors.Errorf("file %q in %q has no native id", k.Filename, k.Root),
			MissingIdentifier,
		)
	}
	return nil
}

// Validate checks the key is usable against the backing store.
func (k Key) Validate() error {
	if k.Root == "" {
		return errors.NotValidf("empty root")
	}
	if k.NativeID != "" && !nativeIDPattern.MatchString(k.NativeID) {
		return errors.NotValidf("native id %q", k.NativeID)
	}
	return nil
}

// String implements fmt.Stringer.
func (k Key) String() string {
	id := k.NativeID
	if id == "" {
		id = "<unassigned>"
	}
	return fmt.Sprintf("%s/%s (%s)", k.Root, id, k.Filename)
}
