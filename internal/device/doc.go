// Package device provides the entity registry for Galaxie host devices.
//
// The registry is the bridge's own record of every device it has announced
// to the host platform: the six fixed race devices, the live_status device
// and one device per live run. It survives restarts, which lets the bridge
// find live run devices left behind by a previous process.
//
// # Architecture
//
//	┌──────────────────┐    ┌──────────────────┐    ┌──────────────────┐
//	│     Registry     │    │    Repository    │    │    Validation    │
//	│   (registry.go)  │───▶│  (repository.go) │    │ (validation.go)  │
//	│                  │    │                  │    │                  │
//	│ • CRUD ops       │    │ • SQLite queries │    │ • ID and name    │
//	│ • In-memory cache│    │ • JSON state     │    │ • Kind checks    │
//	│ • Thread safety  │    │                  │    │ • State limits   │
//	└──────────────────┘    └──────────────────┘    └──────────────────┘
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db.DB)
//	registry := device.NewRegistry(repo)
//	registry.SetLogger(log)
//
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	err := registry.CreateDevice(ctx, &device.Device{
//	    ID:    "live_race_5123",
//	    Name:  "Hollywood Casino 400",
//	    Kind:  device.KindLiveRace,
//	    Model: "NASCAR Live Race",
//	})
//
//	registry.SetDeviceState(ctx, "live_race_5123", device.State{"flag": "Green"})
//
// # Thread Safety
//
// The Registry is safe for concurrent use. All operations are protected by
// a read-write mutex. The Repository implementation must also be thread-safe.
package device
