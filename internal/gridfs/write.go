// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package gridfs

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/juju/errors"
	"github.com/juju/mgo/v3/bson"

	"github.com/juju/gridstore/core/filekey"
	"github.com/juju/gridstore/internal/mongo"
)

// WriteStream writes the contents of one file. Bytes are split into chunks
// of the configured size by the driver as they arrive; the root document
// is only written by Commit.
type WriteStream struct {
	ctx      context.Context
	session  mongo.Session
	bucket   mongo.Bucket
	file     mongo.File
	key      filekey.Key
	aliases  []string
	recorder Recorder

	size   int64
	done   bool
	err    error
	result Stored
}

// Create opens a write stream for key. When the key already carries a
// native id, the previous contents stored under it are removed before Create
// returns, and a write that later fails or is aborted leaves nothing stored
// under the id. Otherwise the driver generates the id.
func Create(ctx context.Context, session mongo.Session, key filekey.Key, opts filekey.WriteOptions, params Params) (_ *WriteStream, err error) {
	defer func() {
		if err != nil {
			session.Close()
		}
	}()
	if err := key.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	opts = opts.WithDefaults(filekey.DefaultChunkSize)

	bucket := session.GridFS(key.Root)
	var id bson.ObjectId
	if key.HasNativeID() {
		id = bson.ObjectIdHex(key.NativeID)
		if err := bucket.Remove(id); err != nil {
			return nil, backingStoreError(err, "replacing %s", key)
		}
	}

	file, err := bucket.Create(key.Filename)
	if err != nil {
		return nil, backingStoreError(err, "creating %s", key)
	}
	if id != "" {
		file.SetId(id)
	}
	file.SetChunkSize(opts.ChunkSize)
	file.SetContentType(opts.ContentType)
	if opts.Metadata != nil {
		file.SetMeta(mongo.EscapeKeys(opts.Metadata))
	}
	// Stored dates have millisecond precision.
	file.SetUploadDate(params.clock().Now().Truncate(time.Millisecond))

	logger.Tracef("writing %s in %s chunks", key, humanize.IBytes(uint64(opts.ChunkSize)))
	return &WriteStream{
		ctx:      ctx,
		session:  session,
		bucket:   bucket,
		file:     file,
		key:      key,
		aliases:  opts.Aliases.SortedValues(),
		recorder: params.recorder(),
	}, nil
}

// Write implements io.Writer. Once a write fails every following write
// returns the same error.
func (w *WriteStream) Write(p []byte) (int, error) {
	if w.done {
		return 0, errors.Errorf("write to closed stream for %s", w.key)
	}
	if w.err != nil {
		return 0, w.err
	}
	if err := w.ctx.Err(); err != nil {
		w.err = errors.Trace(err)
		return 0, w.err
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	if err != nil {
		w.err = backingStoreError(err, "writing %s", w.key)
		return n, w.err
	}
	return n, nil
}

// Commit flushes the remaining chunks and writes the root document. It
// returns the key with its native id assigned, which the caller must
// persist on the logical file. If any write failed, or the context is done,
// the chunks written so far are discarded and the error returned.
//
// Calling Commit again returns the same outcome.
func (w *WriteStream) Commit() (Stored, error) {
	if w.done {
		return w.result, w.err
	}
	w.done = true
	defer w.session.Close()

	if w.err == nil {
		if err := w.ctx.Err(); err != nil {
			w.err = errors.Trace(err)
		}
	}
	if w.err != nil {
		w.discard()
		w.recorder.RecordWrite(w.size, w.err)
		return Stored{}, w.err
	}

	if err := w.file.Close(); err != nil {
		w.err = backingStoreError(err, "storing %s", w.key)
		w.recorder.RecordWrite(w.size, w.err)
		return Stored{}, w.err
	}

	id := w.file.Id()
	if len(w.aliases) > 0 {
		if err := w.bucket.SetAliases(id, w.aliases); err != nil {
			w.err = backingStoreError(err, "recording aliases of %s", w.key)
			if removeErr := w.bucket.Remove(id); removeErr != nil {
				logger.Warningf("cannot remove %s after failed write: %v", w.key, removeErr)
			}
			w.recorder.RecordWrite(w.size, w.err)
			return Stored{}, w.err
		}
	}

	w.result = Stored{
		Key:      w.key.WithNativeID(id.Hex()),
		Size:     w.file.Size(),
		StoredAt: w.file.UploadDate(),
	}
	logger.Debugf("stored %s (%s)", w.result.Key, humanize.IBytes(uint64(w.result.Size)))
	w.recorder.RecordWrite(w.result.Size, nil)
	return w.result, nil
}

// Close implements io.Closer by committing the write.
func (w *WriteStream) Close() error {
	_, err := w.Commit()
	return err
}

// Abort abandons the write, discarding any chunks written. It is a no-op
// after Commit.
func (w *WriteStream) Abort() {
	if w.done {
		return
	}
	w.done = true
	w.err = errors.Errorf("write of %s aborted", w.key)
	defer w.session.Close()
	w.discard()
	logger.Debugf("aborted write of %s after %s", w.key, humanize.IBytes(uint64(w.size)))
}

func (w *WriteStream) discard() {
	w.file.Abort()
	// Closing an aborted file removes its chunks and reports the abort.
	_ = w.file.Close()
}
