// Package protocol implements the WebSocket wire protocol used by the
// live-patch channel: the HTTP upgrade handshake and the minimal frame
// subset needed for server-to-client text messages, ping/pong keep-alive,
// and close.
//
// The implementation is deliberately small. The server only ever sends
// unmasked text frames and pong replies; the client sends masked control
// frames and an occasional close. Fragmentation, extensions, and
// subprotocol negotiation are not supported.
//
// Frame layout (RFC 6455 §5.2):
//
//	 0               1               2               3
//	+-+-+-+-+-------+-+-------------+-------------------------------+
//	|F|R|R|R| opcode|M| Payload len |    Extended payload length    |
//	|I|S|S|S|  (4)  |A|     (7)     |           (16/64)             |
//	|N|V|V|V|       |S|             |                               |
//	+-+-+-+-+-------+-+-------------+-------------------------------+
//	|    Masking-key (if MASK set)  |          Payload Data         |
//	+-------------------------------+-------------------------------+
package protocol
