// Package host implements the mail host API on top of a raw RFC 822 message.
//
// A Message plays the role of the item currently open in the mail client: it
// answers the item properties, returns its bytes through GetAsFile (a base64
// string for small messages, a sliced file otherwise) and serves attachment
// content in the host's {format, content} shape.
package host
