// Package adb owns the ADB session to a single Android TV or Fire TV.
//
// The wire protocol is handled by github.com/zach-klippenstein/goadb, which
// talks to an adb server. A Session either uses a remote adb server named in
// the config entry, or a local server that it starts on demand with the
// bridge's own ADB key.
//
// # Failure Classes
//
// Every call returns one of three kinds of error:
//
//   - ErrLockNotAcquired: another call holds the session; nothing was sent
//   - ErrTransport (wrapped): the link failed and the session should be closed
//   - anything else: an unexpected failure
//
// The player package maps these classes onto availability.
//
// # Thread Safety
//
// Session serialises device calls with a lock that is acquired with a
// timeout. Connect, Close and Available are safe for concurrent use.
package adb
