// Package coordinator provides shared polling for integrations.
//
// A Coordinator[T] owns the fetch cadence for one config entry: it
// polls the vendor API on a fixed interval, caches the latest result,
// and pushes it to listeners. Entities subscribe instead of polling
// individually, so an entry with dozens of entities still costs one
// request per interval.
//
// Failures are tolerated up to three consecutive refreshes, after
// which the availability callback fires; credential rejections stop
// the loop permanently and report through the auth callback.
package coordinator
