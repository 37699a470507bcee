// Package cli implements an interactive terminal front end for BandTrack.
// It drives the same local store and sync engine as the HTTP shell host,
// which makes it handy for inspecting a device database and forcing syncs.
package cli
