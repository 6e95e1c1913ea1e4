// Package wire defines the message and key shapes that cross a
// ReferenceModeStore's external boundary: what a particle proxy sends
// in, and how a handle's storage location is named.
package wire

import "github.com/arcs-project/arcs-core/internal/crdt"

// FieldType is the declared type of one field of a Schema.
type FieldType int

const (
	FieldNumber FieldType = iota
	FieldBoolean
	FieldText
	FieldReference
	FieldCollectionOf
)

// Schema describes the shape of the entities a handle stores: field
// names, their types, and which fields are collections vs singletons.
type Schema struct {
	Names string
	Fields map[string]FieldType
}

// Reference is what a reference-mode container store actually holds in
// place of an inline entity: the backing id plus the storage key of
// the backing store instance that owns the full value, and the version
// vector the reference was minted at.
type Reference struct {
	ID         string             `json:"id"`
	StorageKey StorageKey         `json:"storageKey"`
	Version    crdt.VersionVector `json:"version"`
}

// StorageKey names a concrete storage location. A plain key addresses
// a single CRDT model instance; a ReferenceModeStorageKey composes a
// container key with a backing key, per spec.md §4.C.
type StorageKey struct {
	Protocol string `json:"protocol"`
	Location string `json:"location"`
}

func (k StorageKey) String() string {
	return k.Protocol + "://" + k.Location
}

// ReferenceModeStorageKey is the storage key of a reference-mode
// handle: it names both the container (holding References) and the
// backing family (holding the Entities those references point into).
type ReferenceModeStorageKey struct {
	ContainerKey StorageKey `json:"containerKey"`
	BackingKey   StorageKey `json:"backingKey"`
}

func (k ReferenceModeStorageKey) String() string {
	return "reference-mode://{" + k.ContainerKey.String() + "}{" + k.BackingKey.String() + "}"
}

// MessageType discriminates the ProxyMessage union.
type MessageType int

const (
	MessageSyncRequest MessageType = iota
	MessageModelUpdate
	MessageOperations
)

// ProxyMessage is the envelope a particle's storage proxy sends to, and
// receives from, a ReferenceModeStore. Only the fields relevant to
// Type are populated.
type ProxyMessage struct {
	Type MessageType `json:"type"`

	// ModelUpdate. Outgoing (store -> proxy), Model carries the
	// container's particle view. Incoming (proxy -> store), Model
	// carries a single entity snapshot to upsert and EntityID names
	// which backing id it belongs to. An empty EntityID has no special
	// meaning: the snapshot is upserted under the empty id.
	Model    interface{} `json:"model,omitempty"`
	EntityID string      `json:"entityId,omitempty"`

	// Operations.
	Operations []crdt.Operation `json:"operations,omitempty"`

	// Common.
	ID int `json:"id,omitempty"`
}
