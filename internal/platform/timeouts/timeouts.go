// Package timeouts defines shared timeout constants for the local store
// process.
package timeouts

import "time"

// StoreStartup caps opening the store and applying pending migrations.
// A stalled migration fails startup instead of blocking it forever.
const StoreStartup = 30 * time.Second

// BusyWait is how long SQLite waits on a locked database before failing.
const BusyWait = 5 * time.Second

// Shutdown limits how long servers wait for in-flight work during
// graceful shutdown.
const Shutdown = 5 * time.Second
