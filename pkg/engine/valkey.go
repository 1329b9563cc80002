package engine

// newValkey builds the Valkey adapter: the Redis-protocol implementation
// under Valkey's renamed binaries and URI scheme.
func newValkey() *redisEngine {
	return &redisEngine{
		baseServer: baseServer{kind: KindValkey, serverBinary: "valkey-server", clientBinary: "valkey-cli"},
		scheme:     "valkey",
	}
}
