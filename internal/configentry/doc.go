// Package configentry provides the persistence model for configured
// integration instances.
//
// A config entry is the output of a completed config flow: which
// integration to run, how to reach it and the credentials to use.
// Entries carry a lifecycle state (loaded, setup_retry, auth_failed)
// maintained by the integration manager as setups succeed and fail.
//
// The Store caches entries in memory over the SQLite Repository; all
// reads return deep copies. Deleting an entry cascades to its entities
// at the schema level.
package configentry
