// Package wire defines the CBOR wire format used to transfer ASCS
// connection state between the two devices of a handover pair.
//
// Records use CBOR (RFC 8949) with integer keys and canonical encoding, so
// the same connection always encodes to the same bytes.
//
// # Record Layout
//
// One HandoverConnection is produced per connection:
//   - the Control Point descriptor value
//   - one HandoverAse per ASE slot (id, state, descriptor value)
//   - for every non-Idle ASE, a nested HandoverDynamic carrying the codec
//     configuration, the optional QoS configuration and the metadata bytes
//
// # Absent vs Empty
//
// An absent Dynamic means the ASE holds no configuration (Idle). An absent
// Qos means the ASE has not been QoS configured.
package wire
