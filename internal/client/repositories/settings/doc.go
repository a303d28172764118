// Package settings is the host key/value storage: a small SQLite table that
// survives relaunches. The organization memory keeps its selection here.
package settings
