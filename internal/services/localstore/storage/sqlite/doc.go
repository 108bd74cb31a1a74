// Package sqlite implements the local marketplace store on an embedded SQLite
// database.
//
// A *Store only exists once Open has enabled WAL and foreign keys and applied
// every embedded migration, so repository methods never run against a partial
// schema. Processes hold the store through a Connector created by the
// composition root.
package sqlite

import "github.com/ecomarket/localstore/internal/services/localstore/storage"

var (
	_ storage.GeographyStore      = (*Store)(nil)
	_ storage.SellerStore         = (*Store)(nil)
	_ storage.GamificationStore   = (*Store)(nil)
	_ storage.CatalogStore        = (*Store)(nil)
	_ storage.ListingStore        = (*Store)(nil)
	_ storage.OrderStore          = (*Store)(nil)
	_ storage.ImpactStore         = (*Store)(nil)
	_ storage.KeyValueStore       = (*Store)(nil)
	_ storage.SyncCheckpointStore = (*Store)(nil)
)
