// Package wmspro integrates Warema WMS awnings and roller shutters
// behind a WebControl pro hub.
//
// The hub speaks a single-endpoint JSON command protocol on the local
// network (ping, getConfiguration, getStatus, action). Every awning or
// roller shutter destination with a percentage drive becomes a cover.
// The hub reports 0 as fully open and 100 as fully closed; cover
// positions are inverted to the usual 100-open scale.
//
// The hub pushes nothing, so movement is inferred from position deltas
// between polls: idle destinations poll every 30 seconds, and while
// anything is driving extra refreshes run every 5 seconds until the
// position settles.
package wmspro
