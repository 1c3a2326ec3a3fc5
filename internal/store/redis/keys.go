package redis

const (
	// KeyPrefixConnection is the prefix for connection snapshot keys
	KeyPrefixConnection = "connpane:connection:"

	// KeyAllConnections is the key for the set of all connection keys
	KeyAllConnections = "connpane:connections:all"
)

// ConnectionKey returns the Redis key for a connection by its ConnectionID key
func ConnectionKey(key string) string {
	return KeyPrefixConnection + key
}

// AllConnectionsKey returns the key for the set of all connection keys
func AllConnectionsKey() string {
	return KeyAllConnections
}
