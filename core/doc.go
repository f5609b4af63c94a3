// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

/*
Package core holds the concepts and pure logic of the file store: how
external file ids map to native ids, and how logical files map to keys in
the database.

Nothing in here talks to MongoDB, and nothing in here imports any other
part of github.com/juju/gridstore. Code that needs a session belongs under
internal/.
*/
package core
