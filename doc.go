// Package zdc implements the scientific data container:
// a self-contained dataset unit holding raw data, parameters, and metadata
// under a stable identifier.
//
// A container is a flat mapping from qualified names —
// "part/item.ext", with the part optional —
// to typed payloads,
// plus two reserved attribute records:
// the container descriptor (content.json)
// and the dataset metadata (meta.json).
// Item payloads convert to and from bytes
// through the extension-keyed registry in the codec package.
//
// Containers follow a one-way lifecycle.
// Built from items, a container is mutable;
// serializing, hashing, freezing, or uploading it makes it immutable,
// as does loading one from an archive or a server.
// Release is the only path back:
// it forks a mutable container with a fresh identifier
// and a new lineage from the current content.
//
// A frozen ("static") container carries a deterministic SHA2-256 digest
// of its full content.
// Two static containers with the same container-type name and digest
// are the same dataset:
// the sync engine in the client package uses this
// to deduplicate uploads against the remote store.
// Non-static containers may instead be replaced remotely step by step
// until marked complete,
// each accepted write gated on a strictly increasing modification time.
//
// The zdcfile package stores containers as .zdc archive files,
// the server package implements the remote store,
// and the config package discovers default author identity
// and server credentials.
package zdc
