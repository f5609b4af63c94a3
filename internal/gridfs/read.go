// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package gridfs

import (
	"context"
	"io"

	"github.com/juju/errors"
	"github.com/juju/mgo/v3/bson"

	"github.com/juju/gridstore/core/filekey"
	"github.com/juju/gridstore/internal/mongo"
)

// ReadStream reads the contents of a stored file, chunk by chunk in
// storage order. It cannot be rewound; open a new stream to read again.
type ReadStream struct {
	ctx      context.Context
	session  mongo.Session
	file     mongo.File
	key      filekey.Key
	recorder Recorder

	read   int64
	err    error
	closed bool
}

// Open opens a read stream for key, which must carry a native id.
func Open(ctx context.Context, session mongo.Session, key filekey.Key, params Params) (_ *ReadStream, err error) {
	defer func() {
		if err != nil {
			session.Close()
		}
	}()
	if err := key.RequireNativeID(); err != nil {
		return nil, errors.Trace(err)
	}
	if err := key.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}

	file, err := session.GridFS(key.Root).OpenId(bson.ObjectIdHex(key.NativeID))
	if err != nil {
		err = backingStoreError(err, "opening %s", key)
		params.recorder().RecordRead(0, err)
		return nil, err
	}
	logger.Tracef("reading %s", key)
	return &ReadStream{
		ctx:      ctx,
		session:  session,
		file:     file,
		key:      key,
		recorder: params.recorder(),
	}, nil
}

// Read implements io.Reader.
func (r *ReadStream) Read(p []byte) (int, error) {
	if r.closed {
		return 0, errors.Errorf("read from closed stream for %s", r.key)
	}
	if r.err != nil {
		return 0, r.err
	}
	if err := r.ctx.Err(); err != nil {
		r.err = errors.Trace(err)
		return 0, r.err
	}
	n, err := r.file.Read(p)
	r.read += int64(n)
	if err == io.EOF {
		return n, io.EOF
	} else if err != nil {
		r.err = backingStoreError(err, "reading %s", r.key)
		return n, r.err
	}
	return n, nil
}

// Info describes the file being read.
func (r *ReadStream) Info() FileInfo {
	return FileInfo{
		NativeID:    r.file.Id().Hex(),
		Filename:    r.file.Name(),
		Size:        r.file.Size(),
		ContentType: r.file.ContentType(),
		UploadDate:  r.file.UploadDate(),
		MD5:         r.file.MD5(),
	}
}

// Metadata returns the caller metadata stored with the file, or nil when
// there is none.
func (r *ReadStream) Metadata() (map[string]interface{}, error) {
	var metadata map[string]interface{}
	if err := r.file.GetMeta(&metadata); err != nil {
		return nil, backingStoreError(err, "decoding metadata of %s", r.key)
	}
	return mongo.UnescapeKeys(metadata), nil
}

// Close implements io.Closer.
func (r *ReadStream) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	defer r.session.Close()

	err := r.file.Close()
	if err != nil {
		err = backingStoreError(err, "closing %s", r.key)
	}
	if err == nil {
		err = r.err
	}
	r.recorder.RecordRead(r.read, err)
	return err
}
