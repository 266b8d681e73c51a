// Package models defines the synchronizable entities shared by the client and
// the remote authority: lists, items, their partial updates, and the tagged
// mutation variant queued in the client outbox.
package models
