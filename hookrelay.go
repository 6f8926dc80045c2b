package hookrelay

var (
	VERSION = "dev"
	COMMIT  = "unknown"
)
