// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package mongotest provides an in-memory GridFS database implementing the
// mongo.Session, mongo.Bucket and mongo.File interfaces.
package mongotest

import (
	"sort"
	"sync"
	"time"

	"github.com/juju/mgo/v3/bson"
	"github.com/juju/testing"

	"github.com/juju/gridstore/internal/mongo"
)

// defaultChunkSize matches the driver default.
const defaultChunkSize = 255 * 1024

// FileDoc is the root document of a stored file.
type FileDoc struct {
	Id          bson.ObjectId
	Filename    string
	Length      int64
	ChunkSize   int
	UploadDate  time.Time
	MD5         string
	ContentType string
	Aliases     []string
	Metadata    interface{}
}

type root struct {
	files  map[bson.ObjectId]FileDoc
	chunks map[bson.ObjectId][][]byte
}

// Store holds the contents of an in-memory database. Errors set on the
// embedded Stub are returned, in order, by Ping, Create, OpenId, Remove,
// SetAliases and the file Write, Read and Close methods.
type Store struct {
	testing.Stub

	mu           sync.Mutex
	roots        map[string]*root
	openSessions int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		roots: make(map[string]*root),
	}
}

// NewSession returns a session on the store.
func (st *Store) NewSession() *Session {
	st.mu.Lock()
	st.openSessions++
	st.mu.Unlock()
	return &Session{store: st}
}

// OpenSessions returns the number of sessions not yet closed.
func (st *Store) OpenSessions() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.openSessions
}

// File returns the root document for id under the given root.
func (st *Store) File(rootName string, id bson.ObjectId) (FileDoc, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	r, ok := st.roots[rootName]
	if !ok {
		return FileDoc{}, false
	}
	doc, ok := r.files[id]
	return doc, ok
}

// Files returns the ids of every root document under the given root.
func (st *Store) Files(rootName string) []bson.ObjectId {
	st.mu.Lock()
	defer st.mu.Unlock()
	r, ok := st.roots[rootName]
	if !ok {
		return nil
	}
	ids := make([]bson.ObjectId, 0, len(r.files))
	for id := range r.files {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Chunks returns a copy of the chunks stored for id, in order.
func (st *Store) Chunks(rootName string, id bson.ObjectId) [][]byte {
	st.mu.Lock()
	defer st.mu.Unlock()
	r, ok := st.roots[rootName]
	if !ok {
		return nil
	}
	return copyChunks(r.chunks[id])
}

func (st *Store) root(name string) *root {
	r, ok := st.roots[name]
	if !ok {
		r = &root{
			files:  make(map[bson.ObjectId]FileDoc),
			chunks: make(map[bson.ObjectId][][]byte),
		}
		st.roots[name] = r
	}
	return r
}

func copyChunks(chunks [][]byte) [][]byte {
	if chunks == nil {
		return nil
	}
	result := make([][]byte, len(chunks))
	for i, chunk := range chunks {
		result[i] = append([]byte(nil), chunk...)
	}
	return result
}

// Session is a session on a Store.
type Session struct {
	store  *Store
	closed bool
}

var _ mongo.Session = (*Session)(nil)

// Ping is part of the mongo.Session interface.
func (s *Session) Ping() error {
	s.store.MethodCall(s, "Ping")
	return s.store.NextErr()
}

// Refresh is part of the mongo.Session interface.
func (s *Session) Refresh() {
	s.store.MethodCall(s, "Refresh")
}

// Copy is part of the mongo.Session interface.
func (s *Session) Copy() mongo.Session {
	s.store.MethodCall(s, "Copy")
	return s.store.NewSession()
}

// Clone is part of the mongo.Session interface.
func (s *Session) Clone() mongo.Session {
	s.store.MethodCall(s, "Clone")
	return s.store.NewSession()
}

// Close is part of the mongo.Session interface.
func (s *Session) Close() {
	s.store.MethodCall(s, "Close")
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.store.openSessions--
	}
}

// GridFS is part of the mongo.Session interface.
func (s *Session) GridFS(root string) mongo.Bucket {
	s.store.MethodCall(s, "GridFS", root)
	return &Bucket{store: s.store, root: root}
}
