// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package mongo

import (
	"io"
	"time"

	"github.com/juju/errors"
	"github.com/juju/mgo/v3"
	"github.com/juju/mgo/v3/bson"
)

// Bucket is a GridFS bucket: the "<root>.files" and "<root>.chunks"
// collections of one root.
type Bucket interface {
	// Create opens a new file for writing. The file gets a generated
	// ObjectId unless File.SetId is called before the first write.
	Create(filename string) (File, error)

	// OpenId opens the file with the given id for reading. It returns
	// mgo.ErrNotFound if no root document exists for the id.
	OpenId(id bson.ObjectId) (File, error)

	// Remove deletes the root document with the given id, if any, and
	// every chunk referencing the id.
	Remove(id bson.ObjectId) error

	// SetAliases records aliases on the root document of a stored file.
	SetAliases(id bson.ObjectId, aliases []string) error
}

// File is a GridFS file opened either for writing or for reading.
type File interface {
	io.Reader
	io.Writer

	// Close flushes pending chunks and writes the root document when
	// writing. If the write failed, written chunks are removed.
	io.Closer

	// Abort cancels a write. The following Close removes any written
	// chunks and returns an error.
	Abort()

	Id() bson.ObjectId
	SetId(id bson.ObjectId)
	SetChunkSize(bytes int)
	SetContentType(contentType string)
	SetMeta(metadata interface{})
	SetUploadDate(t time.Time)

	Name() string
	Size() int64
	ContentType() string
	UploadDate() time.Time
	MD5() string
	GetMeta(result interface{}) error
}

type mgoBucket struct {
	gfs *mgo.GridFS
}

// Create is part of the Bucket interface.
func (b *mgoBucket) Create(filename string) (File, error) {
	file, err := b.gfs.Create(filename)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &mgoFile{file}, nil
}

// OpenId is part of the Bucket interface.
func (b *mgoBucket) OpenId(id bson.ObjectId) (File, error) {
	file, err := b.gfs.OpenId(id)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &mgoFile{file}, nil
}

// Remove is part of the Bucket interface. Unlike GridFS.RemoveId, the
// chunks are removed even when the root document is missing, which
// happens for interrupted writes.
func (b *mgoBucket) Remove(id bson.ObjectId) error {
	if err := b.gfs.Files.RemoveId(id); err != nil && err != mgo.ErrNotFound {
		return errors.Trace(err)
	}
	_, err := b.gfs.Chunks.RemoveAll(bson.D{{Name: "files_id", Value: id}})
	return errors.Trace(err)
}

// SetAliases is part of the Bucket interface.
func (b *mgoBucket) SetAliases(id bson.ObjectId, aliases []string) error {
	err := b.gfs.Files.UpdateId(id, bson.D{{Name: "$set", Value: bson.D{{Name: "aliases", Value: aliases}}}})
	return errors.Trace(err)
}

// mgoFile adapts *mgo.GridFile, whose ids are untyped, to File.
type mgoFile struct {
	*mgo.GridFile
}

// Id is part of the File interface.
func (f *mgoFile) Id() bson.ObjectId {
	id, _ := f.GridFile.Id().(bson.ObjectId)
	return id
}

// SetId is part of the File interface.
func (f *mgoFile) SetId(id bson.ObjectId) {
	f.GridFile.SetId(id)
}
