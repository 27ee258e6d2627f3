package chunker

// OverlapLines exposes overlapLines to the external test package.
var OverlapLines = overlapLines
