package pipeline

// Artifact stage names. They appear in artifact filenames as
// <jobID>_<stage>.json, so renaming them breaks existing result files.
const (
	ArtifactMetadata     = "metadata"
	ArtifactPrimoResults = "primo_results"
)
