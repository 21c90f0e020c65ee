// Package mediatypes defines the output formats, codec pairings and MIME
// types shared by the capture and export pipelines.
package mediatypes
