// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package mongo holds the boundary with the mongo driver: dialing, sessions
// and GridFS buckets.
package mongo

import (
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/mgo/v3"
)

var logger = loggo.GetLogger("gridstore.mongo")

// DefaultDialTimeout is how long Dial waits for a reachable server.
const DefaultDialTimeout = 30 * time.Second

// DialOpts holds the connection options of a session.
type DialOpts struct {
	// Timeout is the time to wait for a server to become reachable.
	Timeout time.Duration

	// PerformanceMode relaxes read consistency to monotonic, letting reads
	// be served by secondaries until the session writes.
	PerformanceMode bool

	// AutoReconnect keeps the driver retrying unreachable servers. When
	// unset, operations fail fast once a server is unreachable.
	AutoReconnect bool

	// PoolLimit caps the number of sockets per server. Zero keeps the
	// driver default.
	PoolLimit int
}

// DefaultDialOpts returns the options used when none are configured.
func DefaultDialOpts() DialOpts {
	return DialOpts{
		Timeout:         DefaultDialTimeout,
		PerformanceMode: true,
		AutoReconnect:   true,
	}
}

// Dial connects to the mongo server at addr, a mongodb:// URL or a
// comma separated host list. The database named in the URL path holds the
// GridFS buckets.
func Dial(addr string, opts DialOpts) (Session, error) {
	info, err := mgo.ParseURL(addr)
	if err != nil {
		return nil, errors.Annotatef(err, "parsing mongo address")
	}
	info.Timeout = opts.Timeout
	if info.Timeout <= 0 {
		info.Timeout = DefaultDialTimeout
	}
	info.FailFast = !opts.AutoReconnect
	if opts.PoolLimit > 0 {
		info.PoolLimit = opts.PoolLimit
	}

	logger.Debugf("dialing %v (timeout %v)", info.Addrs, info.Timeout)
	session, err := mgo.DialWithInfo(info)
	if err != nil {
		return nil, errors.Annotatef(err, "dialing %v", info.Addrs)
	}

	if opts.PerformanceMode {
		session.SetMode(mgo.Monotonic, true)
	} else {
		session.SetMode(mgo.Strong, true)
	}
	// Chunk and root document writes must be acknowledged.
	session.SetSafe(&mgo.Safe{})

	return NewSession(session, info.Database), nil
}
