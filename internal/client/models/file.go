// Package models defines the client-side data model of the mail transfer
// pipeline: extracted files, bundles, destinations and the attachment tree.
package models

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf16"
)

// MaxFileNameUnits caps sanitized names, counted in UTF-16 code units.
const MaxFileNameUnits = 120

var (
	forbiddenNameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)
	whitespaceRun      = regexp.MustCompile(`[\s\p{Z}\x{85}\x{FEFF}]+`)
)

// SanitizeFileName makes name safe for common filesystems: forbidden and
// control characters become "_", whitespace runs collapse to one space, the
// result is trimmed and truncated to MaxFileNameUnits code units.
func SanitizeFileName(name string) string {
	s := forbiddenNameChars.ReplaceAllString(name, "_")
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	return truncateUTF16(s, MaxFileNameUnits)
}

func truncateUTF16(s string, limit int) string {
	units := 0
	for i, r := range s {
		n := 1
		if utf16.RuneLen(r) == 2 {
			n = 2
		}
		if units+n > limit {
			return s[:i]
		}
		units += n
	}
	return s
}

// AttachmentFile is a named byte blob produced by the extractor.
type AttachmentFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size is the byte length of the file.
func (f AttachmentFile) Size() int64 { return int64(len(f.Data)) }

// Ext returns the lower-cased text after the last "." of the name, or "bin".
func (f AttachmentFile) Ext() string {
	i := strings.LastIndex(f.Name, ".")
	if i < 0 || i == len(f.Name)-1 {
		return "bin"
	}
	return strings.ToLower(f.Name[i+1:])
}

// MailMeta holds optional descriptive fields of the source message.
type MailMeta struct {
	Subject  string
	From     string
	Received time.Time
}

// Bundle is the eml plus the ordered attachments of one mail item. It is
// never mutated after creation.
type Bundle struct {
	EML         AttachmentFile
	Attachments []AttachmentFile
	Meta        MailMeta
}

// Files returns the upload list [eml?, ...attachments?] for the include flags.
func (b *Bundle) Files(includeEML, includeAttachments bool) []AttachmentFile {
	files := make([]AttachmentFile, 0, 1+len(b.Attachments))
	if includeEML {
		files = append(files, b.EML)
	}
	if includeAttachments {
		files = append(files, b.Attachments...)
	}
	return files
}

// SanitizeWithSuffix sanitizes base and appends suffix, shortening base so
// the whole name stays within MaxFileNameUnits.
func SanitizeWithSuffix(base, suffix string) string {
	s := SanitizeFileName(base)
	room := MaxFileNameUnits - len(utf16.Encode([]rune(suffix)))
	return truncateUTF16(s, room) + suffix
}
