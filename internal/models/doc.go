// Package models defines the client-side data model: server-shaped trip
// entities, the local mutation metadata attached to cached copies, and the
// bookkeeping rows (operation log, id map, snapshots) that drive offline sync.
package models
