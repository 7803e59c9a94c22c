// Package persistence saves and restores register image snapshots.
//
// A snapshot holds every bank's data bytes together with the device
// metadata needed to check that it fits the image it is restored into.
// Snapshots are JSON files; bank data is base64 encoded. Restores go
// through the change-tracked write path, so the owner sees every restored
// byte as dirty.
package persistence
