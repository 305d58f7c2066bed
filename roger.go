package roger

// Application-wide defaults referenced by the config package.
const (
	DefaultAppName    = "roger"
	DefaultConfigPath = "/etc/roger"
	DefaultCorpusPath = "corpus"
)
