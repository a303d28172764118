// Package mail extracts the currently opened message from the host mail API
// into a models.Bundle: the RFC 822 body as an .eml file plus one file per
// listed attachment.
//
// # Host payloads
//
// GetAsFile may answer with a base64 string or with a FileHandle read slice by
// slice. Slice data arrives in several shapes (base64 or plain strings, raw
// bytes, numeric arrays, typed views); each shape has one adapter in
// sliceBytes. New shapes belong there.
//
// # Errors
//
// All failures carry a common.Kind: HostUnavailable, HostUnsupported,
// EmptyPayload or UnsupportedAttachmentKind. Host call failures are returned
// wrapped, unchanged in meaning.
package mail
