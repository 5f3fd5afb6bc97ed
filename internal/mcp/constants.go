package mcp

// Limits on grouped text results. Agents read these directly, so large
// result sets are truncated rather than paginated.
const (
	MaxResultFiles     = 15 // files listed per response
	MaxMatchesPerFile  = 10 // lines listed per file
	DefaultSearchPath  = "."
	serverName         = "tg-mcp-server"
	classifyMaxPreview = 4096 // bytes of classifier output returned
)
