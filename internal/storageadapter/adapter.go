// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package storageadapter provides a file store backed by GridFS. An Adapter
// owns the database connection and serves stream operations on files
// addressed by keys it derives from logical files.
package storageadapter

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/retry"
	"github.com/juju/worker/v4"
	"gopkg.in/tomb.v2"

	"github.com/juju/gridstore/core/fileid"
	"github.com/juju/gridstore/core/filekey"
	"github.com/juju/gridstore/internal/gridfs"
	"github.com/juju/gridstore/internal/mongo"
)

var logger = loggo.GetLogger("gridstore.storageadapter")

// TypeName identifies the kind of store served by an Adapter.
const TypeName = "storage.gridfs"

// PingRetryDelay is the time between failed liveness pings.
const PingRetryDelay = 5 * time.Second

// Adapter is a worker serving file operations on a GridFS store. It is
// created Uninitialized; Init connects it. While connected it pings the
// database every PingInterval. Killing the adapter closes the connection.
type Adapter struct {
	tomb   tomb.Tomb
	config Config

	mu      sync.Mutex
	state   State
	session mongo.Session
}

var _ worker.Worker = (*Adapter)(nil)

// NewAdapter returns an unconnected adapter.
func NewAdapter(config Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	a := &Adapter{
		config: config,
	}
	a.setState(Uninitialized)
	a.tomb.Go(a.loop)
	return a, nil
}

// Kill implements the worker.Worker interface.
func (a *Adapter) Kill() {
	a.tomb.Kill(nil)
}

// Wait implements the worker.Worker interface.
func (a *Adapter) Wait() error {
	return a.tomb.Wait()
}

// Name returns the name of the store.
func (a *Adapter) Name() string {
	return a.config.Name
}

// TypeName returns the kind of store served.
func (a *Adapter) TypeName() string {
	return TypeName
}

// State returns the connection state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Init connects the adapter to the database. It fails with an error
// satisfying errors.AlreadyExists when the adapter is already connected or
// connecting. Connection failures are tagged ConnectionError and leave the
// adapter Failed; Init may then be called again.
func (a *Adapter) Init(ctx context.Context) error {
	a.mu.Lock()
	switch a.state {
	case Connecting, Ready:
		a.mu.Unlock()
		return errors.AlreadyExistsf("connection of gridfs store %q", a.config.Name)
	case Stopped:
		a.mu.Unlock()
		return a.notReady(Stopped)
	}
	a.setStateLocked(Connecting)
	a.mu.Unlock()

	session, err := a.dial(ctx)
	if err != nil {
		a.mu.Lock()
		if a.state == Connecting {
			a.setStateLocked(Failed)
		}
		a.mu.Unlock()
		logger.Errorf("cannot connect gridfs store %q: %v", a.config.Name, err)
		return errors.WithType(errors.Annotatef(err, "connecting gridfs store %q", a.config.Name), ConnectionError)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == Stopped {
		session.Close()
		return a.notReady(Stopped)
	}
	a.session = session
	a.setStateLocked(Ready)
	logger.Infof("gridfs store %q connected", a.config.Name)
	return nil
}

type dialResult struct {
	session mongo.Session
	err     error
}

func (a *Adapter) dial(ctx context.Context) (mongo.Session, error) {
	addr, err := a.config.address()
	if err != nil {
		return nil, errors.Trace(err)
	}

	done := make(chan dialResult, 1)
	go func() {
		session, err := a.config.Dial(addr, a.config.dialOpts())
		done <- dialResult{session: session, err: err}
	}()

	abandon := func() {
		go func() {
			if result := <-done; result.session != nil {
				result.session.Close()
			}
		}()
	}
	select {
	case result := <-done:
		return result.session, errors.Trace(result.err)
	case <-ctx.Done():
		abandon()
		return nil, errors.Trace(ctx.Err())
	case <-a.tomb.Dying():
		abandon()
		return nil, tomb.ErrDying
	}
}

func (a *Adapter) loop() error {
	defer a.shutdown()
	for {
		select {
		case <-a.tomb.Dying():
			return tomb.ErrDying
		case <-a.config.Clock.After(a.config.PingInterval):
			a.checkConnection()
		}
	}
}

func (a *Adapter) shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session != nil {
		a.session.Close()
		a.session = nil
	}
	a.setStateLocked(Stopped)
	logger.Infof("gridfs store %q stopped", a.config.Name)
}

// checkConnection pings the database. When AutoReconnect is set a failed
// ping refreshes the session so the driver dials again, and the adapter
// stays Ready. Otherwise the connection is dropped and the adapter Failed.
func (a *Adapter) checkConnection() {
	a.mu.Lock()
	session := a.session
	a.mu.Unlock()
	if session == nil {
		return
	}

	err := retry.Call(retry.CallArgs{
		Func: func() error {
			err := session.Ping()
			if err != nil && a.config.AutoReconnect {
				session.Refresh()
			}
			return err
		},
		NotifyFunc: func(lastErr error, attempt int) {
			logger.Warningf("ping %d of gridfs store %q failed: %v", attempt, a.config.Name, lastErr)
		},
		Attempts: a.config.PingAttempts,
		Delay:    PingRetryDelay,
		Clock:    a.config.Clock,
		Stop:     a.tomb.Dying(),
	})
	if err == nil || retry.IsRetryStopped(err) {
		return
	}
	if a.config.AutoReconnect {
		logger.Warningf("gridfs store %q unreachable, reconnecting: %v", a.config.Name, retry.LastError(err))
		return
	}

	logger.Errorf("gridfs store %q connection lost: %v", a.config.Name, retry.LastError(err))
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == session {
		a.session.Close()
		a.session = nil
		a.setStateLocked(Failed)
	}
}

func (a *Adapter) setState(state State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setStateLocked(state)
}

func (a *Adapter) setStateLocked(state State) {
	a.state = state
	if a.config.Metrics != nil {
		a.config.Metrics.setState(state)
	}
}

func (a *Adapter) notReady(state State) error {
	return errors.WithType(errors.Errorf("gridfs store %q is %s", a.config.Name, state), NotReady)
}

// operationSession returns the session used by one operation, which the
// operation closes.
func (a *Adapter) operationSession() (mongo.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Ready {
		return nil, a.notReady(a.state)
	}
	if a.config.AutoReconnect {
		return a.session.Copy(), nil
	}
	return a.session.Clone(), nil
}

func (a *Adapter) params() gridfs.Params {
	params := gridfs.Params{
		Clock: a.config.Clock,
	}
	if a.config.Metrics != nil {
		params.Recorder = a.config.Metrics
	}
	return params
}

// FileKey returns the key of file in the store. The native id is the one
// stored on the file; when there is none and DeriveNativeIDs is set it is
// computed from the external id of the file.
func (a *Adapter) FileKey(file filekey.LogicalFile) (filekey.Key, error) {
	key := filekey.Derive(file, a.config.NamespacePrefix())
	if key.HasNativeID() || !a.config.DeriveNativeIDs {
		return key, nil
	}
	id, err := fileid.ToNativeID(file.ID)
	if err != nil {
		return filekey.Key{}, errors.Trace(err)
	}
	return key.WithNativeID(id), nil
}

// CreateReadStream opens the contents of the file stored under key.
func (a *Adapter) CreateReadStream(ctx context.Context, key filekey.Key) (*gridfs.ReadStream, error) {
	if err := key.RequireNativeID(); err != nil {
		return nil, errors.Trace(err)
	}
	session, err := a.operationSession()
	if err != nil {
		return nil, errors.Trace(err)
	}
	r, err := gridfs.Open(ctx, session, key, a.params())
	return r, errors.Trace(err)
}

// CreateWriteStream opens a stream writing the contents of the file stored
// under key. Writes that do not set a chunk size use the configured one.
func (a *Adapter) CreateWriteStream(ctx context.Context, key filekey.Key, opts filekey.WriteOptions) (*gridfs.WriteStream, error) {
	session, err := a.operationSession()
	if err != nil {
		return nil, errors.Trace(err)
	}
	opts = opts.WithDefaults(a.config.ChunkSize)
	w, err := gridfs.Create(ctx, session, key, opts, a.params())
	return w, errors.Trace(err)
}

// Put stores the contents of r under key.
func (a *Adapter) Put(ctx context.Context, key filekey.Key, r io.Reader, opts filekey.WriteOptions) (gridfs.Stored, error) {
	w, err := a.CreateWriteStream(ctx, key, opts)
	if err != nil {
		return gridfs.Stored{}, errors.Trace(err)
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Abort()
		return gridfs.Stored{}, errors.Annotatef(err, "writing %s", key)
	}
	stored, err := w.Commit()
	return stored, errors.Trace(err)
}

// PutFile stores the contents of r as the contents of file, with the
// metadata, content type and aliases of the file. It returns the file with
// its native id set, to be persisted by the caller.
func (a *Adapter) PutFile(ctx context.Context, file filekey.LogicalFile, r io.Reader) (filekey.LogicalFile, gridfs.Stored, error) {
	key, err := a.FileKey(file)
	if err != nil {
		return file, gridfs.Stored{}, errors.Trace(err)
	}
	stored, err := a.Put(ctx, key, r, file.WriteOptions())
	if err != nil {
		return file, gridfs.Stored{}, errors.Trace(err)
	}
	return file.WithNativeID(stored.Key.NativeID), stored, nil
}

// Remove deletes the file stored under key. Removing a file that is not
// stored is not an error.
func (a *Adapter) Remove(ctx context.Context, key filekey.Key) error {
	if err := key.RequireNativeID(); err != nil {
		return errors.Trace(err)
	}
	session, err := a.operationSession()
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(gridfs.Remove(ctx, session, key, a.params()))
}

// Watch is not supported by GridFS stores.
func (a *Adapter) Watch() error {
	return errors.Annotatef(UnsupportedOperation, "watching gridfs store %q", a.config.Name)
}
