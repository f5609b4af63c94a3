// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package mongo

import (
	"github.com/juju/mgo/v3"
)

// Session is a connection to the backing mongo database.
type Session interface {
	// Ping checks the server is reachable.
	Ping() error

	// Refresh discards the sockets held by the session so the next
	// operation dials again.
	Refresh()

	// Copy returns a session using a fresh socket from the pool.
	Copy() Session

	// Clone returns a session reusing the socket of the original.
	Clone() Session

	// Close releases the session's resources.
	Close()

	// GridFS returns the bucket for the given root.
	GridFS(root string) Bucket
}

type mgoSession struct {
	session  *mgo.Session
	database string
}

// NewSession wraps an mgo session. Buckets are opened in the named
// database; an empty name selects the database of the dial address.
func NewSession(session *mgo.Session, database string) Session {
	return &mgoSession{
		session:  session,
		database: database,
	}
}

// Ping is part of the Session interface.
func (s *mgoSession) Ping() error {
	return s.session.Ping()
}

// Refresh is part of the Session interface.
func (s *mgoSession) Refresh() {
	s.session.Refresh()
}

// Copy is part of the Session interface.
func (s *mgoSession) Copy() Session {
	return &mgoSession{session: s.session.Copy(), database: s.database}
}

// Clone is part of the Session interface.
func (s *mgoSession) Clone() Session {
	return &mgoSession{session: s.session.Clone(), database: s.database}
}

// Close is part of the Session interface.
func (s *mgoSession) Close() {
	s.session.Close()
}

// GridFS is part of the Session interface.
func (s *mgoSession) GridFS(root string) Bucket {
	return &mgoBucket{gfs: s.session.DB(s.database).GridFS(root)}
}
