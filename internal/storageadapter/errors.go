// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package storageadapter

import "github.com/juju/errors"

const (
	// ConnectionError tags failures to connect to the backing database.
	ConnectionError = errors.ConstError("connection error")

	// UnsupportedOperation is returned by operations the adapter does not
	// provide.
	UnsupportedOperation = errors.ConstError("unsupported operation")

	// NotReady is returned by operations attempted while the adapter is not
	// connected.
	NotReady = errors.ConstError("adapter not ready")
)
