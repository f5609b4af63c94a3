// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package mongotest

import (
	"crypto/md5"

	"github.com/juju/mgo/v3"
	"github.com/juju/mgo/v3/bson"

	"github.com/juju/gridstore/internal/mongo"
)

// Bucket is a GridFS bucket in a Store.
type Bucket struct {
	store *Store
	root  string
}

var _ mongo.Bucket = (*Bucket)(nil)

// Create is part of the mongo.Bucket interface.
func (b *Bucket) Create(filename string) (mongo.File, error) {
	b.store.MethodCall(b, "Create", filename)
	if err := b.store.NextErr(); err != nil {
		return nil, err
	}
	return &File{
		bucket:  b,
		writing: true,
		hash:    md5.New(),
		doc: FileDoc{
			Id:        bson.NewObjectId(),
			Filename:  filename,
			ChunkSize: defaultChunkSize,
		},
	}, nil
}

// OpenId is part of the mongo.Bucket interface.
func (b *Bucket) OpenId(id bson.ObjectId) (mongo.File, error) {
	b.store.MethodCall(b, "OpenId", id)
	if err := b.store.NextErr(); err != nil {
		return nil, err
	}

	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	r := b.store.root(b.root)
	doc, ok := r.files[id]
	if !ok {
		return nil, mgo.ErrNotFound
	}
	return &File{
		bucket: b,
		doc:    doc,
		chunks: copyChunks(r.chunks[id]),
	}, nil
}

// Remove is part of the mongo.Bucket interface.
func (b *Bucket) Remove(id bson.ObjectId) error {
	b.store.MethodCall(b, "Remove", id)
	if err := b.store.NextErr(); err != nil {
		return err
	}

	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	r := b.store.root(b.root)
	delete(r.files, id)
	delete(r.chunks, id)
	return nil
}

// SetAliases is part of the mongo.Bucket interface.
func (b *Bucket) SetAliases(id bson.ObjectId, aliases []string) error {
	b.store.MethodCall(b, "SetAliases", id, aliases)
	if err := b.store.NextErr(); err != nil {
		return err
	}

	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	r := b.store.root(b.root)
	doc, ok := r.files[id]
	if !ok {
		return mgo.ErrNotFound
	}
	doc.Aliases = append([]string(nil), aliases...)
	r.files[id] = doc
	return nil
}
