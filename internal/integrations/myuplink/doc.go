// Package myuplink integrates NIBE and other myUplink-connected heat
// pumps through the myUplink cloud API.
//
// Authentication is the OAuth2 client-credentials grant; the token
// source renews bearer tokens transparently. One config entry covers
// one API application. The coordinator polls every device's data
// points every 60 seconds: non-writable points become sensors (with
// enum points reporting their label text), writable on/off points
// become switches written back with a PATCH.
package myuplink
