// Package player turns a connected Android TV or Fire TV into a media-player
// entity.
//
// A Player owns the availability of its device. Every device call goes
// through guard, which applies one recovery policy:
//
//   - the player is unavailable and the call is not an update: skip it;
//   - the adb connection is busy: log at info and skip;
//   - the adb link failed: log, close the session, mark unavailable;
//   - anything else: close the session, mark unavailable, return the error.
//
// Update is the only call allowed while unavailable. It reconnects first,
// logging the failure of the first attempt only, then polls the device and
// reconciles the result into the entity State.
package player
