// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package mongo_test

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/mgo/v3"
	"github.com/juju/mgo/v3/bson"
	mgotesting "github.com/juju/mgo/v3/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/gridstore/core/filekey"
	"github.com/juju/gridstore/internal/gridfs"
	"github.com/juju/gridstore/internal/mongo"
)

const (
	testDatabase = "gridstore"
	testRoot     = "cfs_gridfs.images"
)

// serverSuite runs against the mongod started by Test.
type serverSuite struct {
	mgotesting.MgoSuite

	session mongo.Session
}

var _ = gc.Suite(&serverSuite{})

func (s *serverSuite) SetUpSuite(c *gc.C) {
	if mgotesting.MgoServer.Addr() == "" {
		c.Skip("mongod not available")
	}
	s.MgoSuite.SetUpSuite(c)
}

func (s *serverSuite) TearDownSuite(c *gc.C) {
	if mgotesting.MgoServer.Addr() == "" {
		return
	}
	s.MgoSuite.TearDownSuite(c)
}

func (s *serverSuite) SetUpTest(c *gc.C) {
	s.MgoSuite.SetUpTest(c)
	session, err := mongo.Dial("mongodb://"+mgotesting.MgoServer.Addr()+"/"+testDatabase, mongo.DefaultDialOpts())
	c.Assert(err, jc.ErrorIsNil)
	s.session = session
}

func (s *serverSuite) TearDownTest(c *gc.C) {
	if s.session != nil {
		s.session.Close()
		s.session = nil
	}
	s.MgoSuite.TearDownTest(c)
}

func (s *serverSuite) chunks() *mgo.Collection {
	return s.Session.DB(testDatabase).C(testRoot + ".chunks")
}

func (s *serverSuite) files() *mgo.Collection {
	return s.Session.DB(testDatabase).C(testRoot + ".files")
}

func (s *serverSuite) chunkCount(c *gc.C, id bson.ObjectId) int {
	n, err := s.chunks().Find(bson.D{{Name: "files_id", Value: id}}).Count()
	c.Assert(err, jc.ErrorIsNil)
	return n
}

func (s *serverSuite) create(c *gc.C, id bson.ObjectId, data string) {
	file, err := s.session.GridFS(testRoot).Create("images-23456789AB")
	c.Assert(err, jc.ErrorIsNil)
	file.SetId(id)
	file.SetChunkSize(4)
	_, err = io.WriteString(file, data)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(file.Close(), jc.ErrorIsNil)
}

func (s *serverSuite) TestPing(c *gc.C) {
	c.Check(s.session.Ping(), jc.ErrorIsNil)

	copied := s.session.Copy()
	defer copied.Close()
	c.Check(copied.Ping(), jc.ErrorIsNil)

	cloned := s.session.Clone()
	defer cloned.Close()
	cloned.Refresh()
	c.Check(cloned.Ping(), jc.ErrorIsNil)
}

func (s *serverSuite) TestCreateAndOpen(c *gc.C) {
	id := bson.NewObjectId()
	uploaded := time.Date(2026, 10, 16, 12, 0, 0, 123000000, time.UTC)

	file, err := s.session.GridFS(testRoot).Create("images-23456789AB")
	c.Assert(err, jc.ErrorIsNil)
	file.SetId(id)
	file.SetChunkSize(4)
	file.SetContentType("text/plain")
	file.SetMeta(mongo.EscapeKeys(map[string]interface{}{
		"image.width": 640,
		"exif":        bson.M{"f.number": "2.8"},
	}))
	file.SetUploadDate(uploaded)
	_, err = io.WriteString(file, "hello world")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(file.Close(), jc.ErrorIsNil)
	c.Check(file.Id(), gc.Equals, id)

	c.Check(s.chunkCount(c, id), gc.Equals, 3)

	file, err = s.session.GridFS(testRoot).OpenId(id)
	c.Assert(err, jc.ErrorIsNil)
	defer file.Close()
	data, err := io.ReadAll(file)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(string(data), gc.Equals, "hello world")
	c.Check(file.Id(), gc.Equals, id)
	c.Check(file.Name(), gc.Equals, "images-23456789AB")
	c.Check(file.Size(), gc.Equals, int64(11))
	c.Check(file.ContentType(), gc.Equals, "text/plain")
	c.Check(file.MD5(), gc.Equals, "5eb63bbbe01eeed093cb22bb8f5acdc3")
	c.Check(file.UploadDate().Equal(uploaded), jc.IsTrue, gc.Commentf("got %v", file.UploadDate()))

	var meta map[string]interface{}
	c.Assert(file.GetMeta(&meta), jc.ErrorIsNil)
	c.Check(mongo.UnescapeKeys(meta), jc.DeepEquals, map[string]interface{}{
		"image.width": 640,
		"exif":        map[string]interface{}{"f.number": "2.8"},
	})
}

func (s *serverSuite) TestOpenNotFound(c *gc.C) {
	_, err := s.session.GridFS(testRoot).OpenId(bson.NewObjectId())
	c.Check(errors.Cause(err), gc.Equals, mgo.ErrNotFound)
}

func (s *serverSuite) TestAbortRemovesChunks(c *gc.C) {
	id := bson.NewObjectId()
	file, err := s.session.GridFS(testRoot).Create("images-23456789AB")
	c.Assert(err, jc.ErrorIsNil)
	file.SetId(id)
	file.SetChunkSize(2)
	_, err = io.WriteString(file, "hello")
	c.Assert(err, jc.ErrorIsNil)

	file.Abort()
	c.Check(file.Close(), gc.ErrorMatches, "write aborted")
	c.Check(s.chunkCount(c, id), gc.Equals, 0)
	n, err := s.files().FindId(id).Count()
	c.Assert(err, jc.ErrorIsNil)
	c.Check(n, gc.Equals, 0)
}

func (s *serverSuite) TestRemove(c *gc.C) {
	id := bson.NewObjectId()
	other := bson.NewObjectId()
	s.create(c, id, "hello world")
	s.create(c, other, "other")

	bucket := s.session.GridFS(testRoot)
	c.Assert(bucket.Remove(id), jc.ErrorIsNil)
	c.Check(s.chunkCount(c, id), gc.Equals, 0)
	_, err := bucket.OpenId(id)
	c.Check(errors.Cause(err), gc.Equals, mgo.ErrNotFound)

	// Removing again is not an error.
	c.Check(bucket.Remove(id), jc.ErrorIsNil)

	// Other files are untouched.
	c.Check(s.chunkCount(c, other), gc.Equals, 2)
	_, err = bucket.OpenId(other)
	c.Check(err, jc.ErrorIsNil)
}

func (s *serverSuite) TestRemoveOrphanChunks(c *gc.C) {
	id := bson.NewObjectId()
	for n, data := range []string{"hell", "o wo"} {
		err := s.chunks().Insert(bson.D{
			{Name: "_id", Value: bson.NewObjectId()},
			{Name: "files_id", Value: id},
			{Name: "n", Value: n},
			{Name: "data", Value: []byte(data)},
		})
		c.Assert(err, jc.ErrorIsNil)
	}
	c.Assert(s.chunkCount(c, id), gc.Equals, 2)

	c.Assert(s.session.GridFS(testRoot).Remove(id), jc.ErrorIsNil)
	c.Check(s.chunkCount(c, id), gc.Equals, 0)
}

func (s *serverSuite) TestSetAliases(c *gc.C) {
	id := bson.NewObjectId()
	s.create(c, id, "hello")

	err := s.session.GridFS(testRoot).SetAliases(id, []string{"avatar", "profile"})
	c.Assert(err, jc.ErrorIsNil)

	var doc struct {
		Aliases []string `bson:"aliases"`
	}
	c.Assert(s.files().FindId(id).One(&doc), jc.ErrorIsNil)
	c.Check(doc.Aliases, jc.DeepEquals, []string{"avatar", "profile"})
}

func (s *serverSuite) TestSetAliasesNotFound(c *gc.C) {
	err := s.session.GridFS(testRoot).SetAliases(bson.NewObjectId(), []string{"avatar"})
	c.Check(errors.Cause(err), gc.Equals, mgo.ErrNotFound)
}

func (s *serverSuite) TestStreamsRoundTrip(c *gc.C) {
	clock := testclock.NewClock(time.Date(2026, 10, 16, 12, 0, 0, 123456789, time.UTC))
	params := gridfs.Params{Clock: clock}
	key := filekey.Key{
		Root:     testRoot,
		Filename: "images-23456789AB",
	}
	data := bytes.Repeat([]byte("0123456789"), 1000)

	w, err := gridfs.Create(context.Background(), s.session.Copy(), key, filekey.WriteOptions{
		ChunkSize: 4096,
		Metadata:  map[string]interface{}{"labels": map[string]string{"app.name": "web"}},
		Aliases:   set.NewStrings("avatar"),
	}, params)
	c.Assert(err, jc.ErrorIsNil)
	_, err = io.Copy(w, bytes.NewReader(data))
	c.Assert(err, jc.ErrorIsNil)
	stored, err := w.Commit()
	c.Assert(err, jc.ErrorIsNil)
	c.Check(stored.Size, gc.Equals, int64(len(data)))
	c.Check(s.chunkCount(c, bson.ObjectIdHex(stored.Key.NativeID)), gc.Equals, 3)

	r, err := gridfs.Open(context.Background(), s.session.Copy(), stored.Key, params)
	c.Assert(err, jc.ErrorIsNil)
	read, err := io.ReadAll(r)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(read, jc.DeepEquals, data)
	c.Check(r.Info().UploadDate.Equal(stored.StoredAt), jc.IsTrue,
		gc.Commentf("stored at %v, read back %v", stored.StoredAt, r.Info().UploadDate))
	meta, err := r.Metadata()
	c.Assert(err, jc.ErrorIsNil)
	c.Check(meta, jc.DeepEquals, map[string]interface{}{
		"labels": map[string]interface{}{"app.name": "web"},
	})
	c.Assert(r.Close(), jc.ErrorIsNil)

	c.Assert(gridfs.Remove(context.Background(), s.session.Copy(), stored.Key, params), jc.ErrorIsNil)
	c.Check(s.chunkCount(c, bson.ObjectIdHex(stored.Key.NativeID)), gc.Equals, 0)
}
