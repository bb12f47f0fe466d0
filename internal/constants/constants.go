package constants

// MaxDefinitionSize is the largest stack definition (in bytes) fetched from
// S3. Larger objects are rejected before download.
const MaxDefinitionSize = 4 * 1024 * 1024 // 4 MB
