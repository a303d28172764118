// Package controller sequences user commands over the extractor, the
// destination resolver, the uploader and org memory. It owns the in-memory
// state of the panel: the prepared bundle, the chosen destination, the
// include flags, the status line and the download handles.
package controller
