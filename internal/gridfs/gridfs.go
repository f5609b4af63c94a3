// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package gridfs streams file contents in and out of GridFS buckets. Each
// operation is handed its own mongo session, which it closes once the
// operation completes.
package gridfs

import (
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"

	"github.com/juju/gridstore/core/filekey"
)

var logger = loggo.GetLogger("gridstore.gridfs")

// BackingStoreError tags errors returned by the database. The driver error
// is kept in the chain unchanged.
const BackingStoreError = errors.ConstError("backing store error")

// Stored describes a completed write.
type Stored struct {
	// Key is the key written, with the native id assigned.
	Key filekey.Key

	// Size is the number of bytes stored.
	Size int64

	// StoredAt is the upload date recorded on the root document.
	StoredAt time.Time
}

// FileInfo describes a stored file.
type FileInfo struct {
	NativeID    string
	Filename    string
	Size        int64
	ContentType string
	UploadDate  time.Time
	MD5         string
}

// Recorder receives the outcome of completed operations.
type Recorder interface {
	RecordWrite(size int64, err error)
	RecordRead(size int64, err error)
	RecordRemove(err error)
}

// Params holds the collaborators shared by the operations.
type Params struct {
	// Clock provides the upload date of written files.
	Clock clock.Clock

	// Recorder is optional.
	Recorder Recorder
}

func (p Params) clock() clock.Clock {
	if p.Clock == nil {
		return clock.WallClock
	}
	return p.Clock
}

func (p Params) recorder() Recorder {
	if p.Recorder == nil {
		return nopRecorder{}
	}
	return p.Recorder
}

type nopRecorder struct{}

func (nopRecorder) RecordWrite(int64, error) {}
func (nopRecorder) RecordRead(int64, error)  {}
func (nopRecorder) RecordRemove(error)       {}

func backingStoreError(err error, format string, args ...interface{}) error {
	return errors.WithType(errors.Annotatef(err, format, args...), BackingStoreError)
}
