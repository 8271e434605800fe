// Package flow implements config flows: the multi-step forms that
// collect what an integration needs before a config entry is created.
//
// Each integration registers a Handler for its domain. The Manager
// assigns a UUID to each started flow, feeds submitted input to the
// handler step by step, and drops flows that have been idle for 15
// minutes. Flows live only in memory; a restart abandons them.
//
// The manager is transport-agnostic: the REST API drives it, and the
// terminal CreateEntry result is handed to the integration manager to
// persist and set up.
package flow
