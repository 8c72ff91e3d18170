// Package codec defines the wire format of the protocol engine.
//
// A message consists of a fixed 28 byte header followed by the metadata
// buffer and then the payload buffer. All multi-byte header fields are
// encoded big endian:
//
//	magic(4) version(2) type(2) flags(4) sequence(4)
//	payloadSize(4) metadataSize(4) checksum(4)
//
// The checksum is a CRC-32 (IEEE) over the complete serialized buffer
// with the checksum field zeroed. It guards against accidental
// corruption only and is not a security primitive.
//
// Payloads larger than the negotiated fragment size are split into
// fragments that share the parent sequence number and carry a
// monotonically increasing fragment index in their metadata buffer. The
// Reassembler puts them back together and rejects duplicates and
// out-of-order arrivals.
package codec
