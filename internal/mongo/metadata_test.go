// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package mongo_test

import (
	"github.com/juju/mgo/v3/bson"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/gridstore/internal/mongo"
)

type metadataSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&metadataSuite{})

func (s *metadataSuite) TestEscapeKey(c *gc.C) {
	c.Check(mongo.EscapeKey("a.b"), gc.Equals, "a．b")
	c.Check(mongo.EscapeKey("$a"), gc.Equals, "＄a")
	c.Check(mongo.EscapeKey("plain"), gc.Equals, "plain")
}

func (s *metadataSuite) TestUnescapeKey(c *gc.C) {
	c.Check(mongo.UnescapeKey("a．b"), gc.Equals, "a.b")
	c.Check(mongo.UnescapeKey("＄a"), gc.Equals, "$a")
}

func (s *metadataSuite) TestEscapeKeysNested(c *gc.C) {
	before := map[string]interface{}{
		"$a": "c",
		"b": map[string]interface{}{
			"$foo.bar": "baz",
		},
		"list": []interface{}{
			map[string]interface{}{"x.y": 1},
			"z.z",
		},
	}
	after := mongo.EscapeKeys(before)

	c.Check(after, gc.DeepEquals, map[string]interface{}{
		"＄a": "c",
		"b": map[string]interface{}{
			"＄foo．bar": "baz",
		},
		"list": []interface{}{
			map[string]interface{}{"x．y": 1},
			"z.z",
		},
	})
	c.Check(mongo.UnescapeKeys(after), gc.DeepEquals, before)

	// The input is left alone.
	c.Check(before["$a"], gc.Equals, "c")
}

func (s *metadataSuite) TestEscapeKeysNestedMapTypes(c *gc.C) {
	type labels map[string]int
	before := map[string]interface{}{
		"a": bson.M{"x.y": 1, "inner": bson.M{"$z": true}},
		"b": map[string]string{"p.q": "v"},
		"c": labels{"k.8s": 3},
		"d": bson.D{{Name: "e.f", Value: bson.M{"$g": 1}}},
		"e": []bson.M{{"h.i": "j"}},
		"f": []string{"k.l"},
		"g": []byte("m.n"),
	}

	c.Check(mongo.EscapeKeys(before), jc.DeepEquals, map[string]interface{}{
		"a": map[string]interface{}{"x．y": 1, "inner": map[string]interface{}{"＄z": true}},
		"b": map[string]interface{}{"p．q": "v"},
		"c": map[string]interface{}{"k．8s": 3},
		"d": bson.D{{Name: "e．f", Value: map[string]interface{}{"＄g": 1}}},
		"e": []interface{}{map[string]interface{}{"h．i": "j"}},
		"f": []string{"k.l"},
		"g": []byte("m.n"),
	})
}

func (s *metadataSuite) TestUnescapeKeysDecodedDocument(c *gc.C) {
	// Nested documents decode as bson.M.
	decoded := map[string]interface{}{
		"a": bson.M{"x．y": 1},
		"b": []interface{}{bson.M{"＄p": "q"}},
	}
	c.Check(mongo.UnescapeKeys(decoded), jc.DeepEquals, map[string]interface{}{
		"a": map[string]interface{}{"x.y": 1},
		"b": []interface{}{map[string]interface{}{"$p": "q"}},
	})
}

func (s *metadataSuite) TestEscapeKeysNil(c *gc.C) {
	c.Check(mongo.EscapeKeys(nil), gc.IsNil)
}
