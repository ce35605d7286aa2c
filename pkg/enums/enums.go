package enums

// OutboxEventType identifies the kind of domain event recorded in the outbox.
type OutboxEventType string

const (
	OutboxEventProductCreated OutboxEventType = "catalog.product.created"
	OutboxEventProductUpdated OutboxEventType = "catalog.product.updated"
	OutboxEventProductDeleted OutboxEventType = "catalog.product.deleted"
)

// OutboxAggregateType identifies which aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	OutboxAggregateProduct OutboxAggregateType = "product"
)

// MediaKind distinguishes the two asset classes a variant can carry.
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)
