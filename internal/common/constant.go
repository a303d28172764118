package common

// Keys under which the organization selection is persisted in host storage.
const (
	OrgIDKey   = "ll:addin:orgId"
	OrgNameKey = "ll:addin:orgName"
)

// Keyring item names.
const (
	AccessTokenCredential  = "access_token"
	IMAPPasswordCredential = "imap_password"
)

// MIME types used by the extractor.
const (
	MIMEMessageRFC822 = "message/rfc822"
	MIMEOctetStream   = "application/octet-stream"
)
