// Package model defines the synchronizable entity types of the assistant
// client (tasks, calendar events, chat sessions and messages) and the
// mutation records that the sync coordinator replays against the backend.
//
// Every entity embeds Meta, the common sync bookkeeping fields:
//
//   - ID: negative while the record only exists locally, positive once the
//     backend has assigned a canonical identifier
//   - Synced: true once the record's last mutation was accepted remotely
//   - Deleted: soft-delete marker, cleared by a backend-confirmed delete
//   - LastUpdated: timestamp of the most recent local mutation
//
// Mutations carry a tagged payload variant per entity type. Serialization
// to and from the persisted queue format lives here; the wire format of the
// remote API is the remote package's concern.
package model
