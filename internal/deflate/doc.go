// Package deflate drives raw DEFLATE compression for archive entries and
// decodes deflated payloads for readers.
//
// Compression is chunked: compressed output is handed to a sink in bounded
// chunks as soon as each fills, so large inputs never need their full
// compressed form in memory.
package deflate
