// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package gridfs

import (
	"context"

	"github.com/juju/errors"
	"github.com/juju/mgo/v3/bson"

	"github.com/juju/gridstore/core/filekey"
	"github.com/juju/gridstore/internal/mongo"
)

// Remove deletes the root document of key and every chunk referencing its
// native id. Removing a file that is not there is not an error, and chunks
// left behind by an interrupted write are removed as well.
func Remove(ctx context.Context, session mongo.Session, key filekey.Key, params Params) (err error) {
	defer session.Close()
	defer func() {
		params.recorder().RecordRemove(err)
	}()

	if err := key.RequireNativeID(); err != nil {
		return errors.Trace(err)
	}
	if err := key.Validate(); err != nil {
		return errors.Trace(err)
	}
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}

	if err := session.GridFS(key.Root).Remove(bson.ObjectIdHex(key.NativeID)); err != nil {
		return backingStoreError(err, "removing %s", key)
	}
	logger.Debugf("removed %s", key)
	return nil
}
