// Package httpapi implements the HTTP surface: image query, insert,
// delete, and status, on top of the in-memory engine and its external
// store.
package httpapi

import (
	"iqdb/internal/config"
	"iqdb/internal/engine"
	"iqdb/internal/store"
)

// App is the API facade binding the search engine, its persistent store,
// and configuration together for the HTTP handlers.
type App struct {
	Engine *engine.DB
	Store  store.Store
	Config *config.Manager
}

// NewApp creates an App with all dependencies injected.
func NewApp(eng *engine.DB, st store.Store, cfg *config.Manager) *App {
	return &App{Engine: eng, Store: st, Config: cfg}
}
