package redis

// Key prefixes for primary entity storage.
const (
	prefixRoute      = "conduit:route:"
	prefixRun        = "conduit:run:"
	prefixDeadLetter = "conduit:dl:"
)

// Key prefix for the per-route idempotency index. The value is the run ID.
const uniqueRunIdem = "conduit:u:run:idem:" // + route ID + ":" + key

// Key prefixes for sorted set indexes.
const (
	zRouteAll      = "conduit:z:route:all"
	zRunAll        = "conduit:z:run:all"
	zRunRoute      = "conduit:z:run:route:" // + route ID
	zDeadLetterAll = "conduit:z:dl:all"
	zDeadLetterRte = "conduit:z:dl:route:" // + route ID
)

// entityKey returns the primary key for an entity.
func entityKey(prefix, id string) string {
	return prefix + id
}

func idempotencyKey(routeID, key string) string {
	return uniqueRunIdem + routeID + ":" + key
}
