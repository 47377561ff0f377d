// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

/*
Package supervisor provides process supervision for the sync server using
suture v4.

Every long-running component runs as a suture.Service inside a three layer
tree:

	reelsync
	├── data-layer
	│   └── StoreGCService        (badger value log GC, disk stores only)
	├── messaging-layer
	│   ├── WebSocketHubService   (live connection registry)
	│   └── RelayService          (event bus to hub)
	└── api-layer
	    └── HTTPServerService

Crashed services restart with suture's backoff. Failures are counted per
layer, so a relay that keeps losing its NATS subscription backs off on its
own while the API keeps serving.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddDataService(services.NewStoreGCService(st, cfg.Storage.GCInterval))
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddMessagingService(services.NewRelayService(websocket.NewRelay(bus, hub)))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	errCh := tree.ServeBackground(ctx)

Supervisor events are logged through sutureslog into the zerolog pipeline.
After the root context is canceled, UnstoppedServiceReport names any
service that ignored its shutdown timeout.
*/
package supervisor
