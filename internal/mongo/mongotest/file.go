// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package mongotest

import (
	"encoding/hex"
	"hash"
	"io"
	"time"

	"github.com/juju/errors"
	"github.com/juju/mgo/v3/bson"

	"github.com/juju/gridstore/internal/mongo"
)

// File is a file in a Bucket, open for writing or for reading. Chunks are
// stored as soon as they fill up, like the driver does, so an abandoned
// write leaves a partial chunk set without a root document.
type File struct {
	bucket  *Bucket
	doc     FileDoc
	writing bool
	closed  bool
	aborted bool
	err     error

	// Write state.
	hash hash.Hash
	wbuf []byte
	n    int

	// Read state.
	chunks [][]byte
	offset int
}

var _ mongo.File = (*File)(nil)

// Write is part of the mongo.File interface.
func (f *File) Write(data []byte) (int, error) {
	f.bucket.store.MethodCall(f, "Write", len(data))
	if !f.writing || f.closed {
		return 0, errors.New("file not open for writing")
	}
	if f.err != nil {
		return 0, f.err
	}
	if err := f.bucket.store.NextErr(); err != nil {
		f.err = err
		return 0, err
	}

	f.hash.Write(data)
	f.doc.Length += int64(len(data))
	f.wbuf = append(f.wbuf, data...)
	for len(f.wbuf) >= f.doc.ChunkSize {
		f.insertChunk(f.wbuf[:f.doc.ChunkSize])
		f.wbuf = f.wbuf[f.doc.ChunkSize:]
	}
	return len(data), nil
}

func (f *File) insertChunk(data []byte) {
	store := f.bucket.store
	store.mu.Lock()
	defer store.mu.Unlock()
	r := store.root(f.bucket.root)
	r.chunks[f.doc.Id] = append(r.chunks[f.doc.Id], append([]byte(nil), data...))
	f.n++
}

// Read is part of the mongo.File interface.
func (f *File) Read(buf []byte) (int, error) {
	f.bucket.store.MethodCall(f, "Read", len(buf))
	if f.writing || f.closed {
		return 0, errors.New("file not open for reading")
	}
	if err := f.bucket.store.NextErr(); err != nil {
		return 0, err
	}

	var n int
	for n < len(buf) && len(f.chunks) > 0 {
		copied := copy(buf[n:], f.chunks[0][f.offset:])
		n += copied
		f.offset += copied
		if f.offset == len(f.chunks[0]) {
			f.chunks = f.chunks[1:]
			f.offset = 0
		}
	}
	if n == 0 && len(buf) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Close is part of the mongo.File interface.
func (f *File) Close() error {
	f.bucket.store.MethodCall(f, "CloseFile")
	if f.closed {
		return nil
	}
	f.closed = true
	if !f.writing {
		return nil
	}

	err := f.bucket.store.NextErr()
	if f.aborted {
		err = errors.New("write aborted")
	} else if f.err != nil {
		err = f.err
	}
	if err == nil && len(f.wbuf) > 0 {
		f.insertChunk(f.wbuf)
		f.wbuf = nil
	}

	store := f.bucket.store
	store.mu.Lock()
	defer store.mu.Unlock()
	r := store.root(f.bucket.root)
	if err == nil {
		if _, exists := r.files[f.doc.Id]; exists {
			err = errors.Errorf("E11000 duplicate key error: %s.files _id %q", f.bucket.root, f.doc.Id.Hex())
		}
	}
	if err != nil {
		// Written chunks are removed by files_id, as the driver does.
		delete(r.chunks, f.doc.Id)
		return err
	}

	f.doc.MD5 = hex.EncodeToString(f.hash.Sum(nil))
	if f.doc.UploadDate.IsZero() {
		f.doc.UploadDate = time.Now()
	}
	r.files[f.doc.Id] = f.doc
	return nil
}

// Abort is part of the mongo.File interface.
func (f *File) Abort() {
	f.bucket.store.MethodCall(f, "Abort")
	f.aborted = true
}

// Id is part of the mongo.File interface.
func (f *File) Id() bson.ObjectId {
	return f.doc.Id
}

// SetId is part of the mongo.File interface.
func (f *File) SetId(id bson.ObjectId) {
	if f.writing && f.doc.Length == 0 {
		f.doc.Id = id
	}
}

// SetChunkSize is part of the mongo.File interface.
func (f *File) SetChunkSize(bytes int) {
	if f.writing && f.doc.Length == 0 {
		f.doc.ChunkSize = bytes
	}
}

// SetContentType is part of the mongo.File interface.
func (f *File) SetContentType(contentType string) {
	f.doc.ContentType = contentType
}

// SetMeta is part of the mongo.File interface.
func (f *File) SetMeta(metadata interface{}) {
	f.doc.Metadata = metadata
}

// SetUploadDate is part of the mongo.File interface.
func (f *File) SetUploadDate(t time.Time) {
	f.doc.UploadDate = t
}

// Name is part of the mongo.File interface.
func (f *File) Name() string {
	return f.doc.Filename
}

// Size is part of the mongo.File interface.
func (f *File) Size() int64 {
	return f.doc.Length
}

// ContentType is part of the mongo.File interface.
func (f *File) ContentType() string {
	return f.doc.ContentType
}

// UploadDate is part of the mongo.File interface.
func (f *File) UploadDate() time.Time {
	return f.doc.UploadDate
}

// MD5 is part of the mongo.File interface.
func (f *File) MD5() string {
	return f.doc.MD5
}

// GetMeta is part of the mongo.File interface. The metadata goes through a
// bson round trip, as it would when read back from the server.
func (f *File) GetMeta(result interface{}) error {
	if f.doc.Metadata == nil {
		return nil
	}
	data, err := bson.Marshal(f.doc.Metadata)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(bson.Unmarshal(data, result))
}
