// Package canonical serialises persisted documents into a canonical JSON form
// and derives content revisions from it.
//
// Canonical JSON here follows RFC 8785 where it matters for stable bytes:
//   - object keys sorted by UTF-16 code units
//   - strings kept byte for byte, no HTML escaping, U+2028/U+2029 left literal
//   - no insignificant whitespace
//
// Numbers keep the literal produced by encoding/json, which already uses the
// shortest round-trip form for floats.
package canonical
