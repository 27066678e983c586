package appmessage

// ProtocolVersion is the version of the peer protocol sent in the
// handshake.
const ProtocolVersion uint32 = 1

// Error codes sent in MsgError.
const (
	// ErrorCodeBadRequest is sent when a request cannot be served as asked
	ErrorCodeBadRequest = 400

	// ErrorCodeNotFound is sent when a requested block or transaction is
	// unknown
	ErrorCodeNotFound = 404

	// ErrorCodeNetworkMismatch is sent when a handshake announces a
	// different network
	ErrorCodeNetworkMismatch = 409

	// ErrorCodeTooManyPeers is sent to an inbound connection refused
	// because the node is at its peer limit
	ErrorCodeTooManyPeers = 503
)
