// Package transcript exports a conversation as a downloadable document.
//
// Export is a premium feature. Markdown is the source format; HTML is
// rendered from it with goldmark. Diagram attachments are expanded into
// their numbered steps when the payload parses, and referenced by name
// otherwise.
package transcript
