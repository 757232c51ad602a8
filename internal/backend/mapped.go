package backend

// InitialChunkSize is the default size of the first mapped chunk.
const InitialChunkSize = 128 << 10

// chunkAlign is the granularity mapped chunk sizes are rounded to.
const chunkAlign = 64 << 10
