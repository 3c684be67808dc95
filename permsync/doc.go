// Package permsync runs the polling loop that keeps the permission cache consistent
// with the backend. Each tick compares the server's grants with the cached snapshot
// and refreshes only when they differ; the refresh broadcast to cache listeners is the
// visible effect. Nothing happens while no identity is active.
package permsync
