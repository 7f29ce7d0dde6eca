// Package syncer coordinates the flow of local mutations to the remote
// backend.
//
// Every write goes through the same path regardless of connectivity:
// the mutation is appended to the durable queue first, then dispatched
// remotely if the device is online. Queued entries are replayed in
// strict enqueue order during reconciliation, which runs at startup
// (when unsynced records exist), on every offline-to-online transition,
// and on demand.
//
// Replay rebuilds create and update payloads from the record's current
// cached state rather than the snapshot stored at enqueue time, so a
// record deleted after a queued update can never be resurrected by the
// stale snapshot. A record created and then deleted while offline nets
// out locally without any remote call.
package syncer
