// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package storageadapter

// State is the connection state of an Adapter.
type State int

const (
	// Uninitialized is the state of a new adapter.
	Uninitialized State = iota

	// Connecting means Init is dialing the database.
	Connecting

	// Ready means the adapter is connected and serves operations.
	Ready

	// Failed means connecting failed, or the connection was lost. Init
	// may be called again.
	Failed

	// Stopped means the adapter has been killed.
	Stopped
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}
