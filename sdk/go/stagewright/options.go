package stagewright

// Option configures a Client at creation time.
type Option func(*clientConfig)

type clientConfig struct {
	config       *Config
	configFile   string
	accountsFile string
	baseURL      string
	outputDir    string
	provider     Provider
}

// WithConfig uses a fully built configuration instead of loading one
// from disk. The Client works on its own copy.
func WithConfig(cfg *Config) Option {
	return func(c *clientConfig) { c.config = cfg }
}

// WithConfigFile loads configuration from path instead of the default
// stagewright.yaml.
func WithConfigFile(path string) Option {
	return func(c *clientConfig) { c.configFile = path }
}

// WithAccountsFile overrides the external accounts file.
func WithAccountsFile(path string) Option {
	return func(c *clientConfig) { c.accountsFile = path }
}

// WithBaseURL overrides the base URL prefixed to relative navigation.
func WithBaseURL(url string) Option {
	return func(c *clientConfig) { c.baseURL = url }
}

// WithOutputDir overrides the root directory for run artifacts.
func WithOutputDir(dir string) Option {
	return func(c *clientConfig) { c.outputDir = dir }
}

// WithProvider supplies a page provider, replacing the launched
// browser. The caller keeps ownership: Close will not touch it.
func WithProvider(p Provider) Option {
	return func(c *clientConfig) { c.provider = p }
}

// RunOption configures a single Run call.
type RunOption func(*runConfig)

type runConfig struct {
	part        int
	stopOnError bool
	outputDir   string
}

// RunWithPart restricts the run to one 1-based part.
func RunWithPart(n int) RunOption {
	return func(r *runConfig) { r.part = n }
}

// RunWithStopOnError halts the run at the first failed step.
func RunWithStopOnError() RunOption {
	return func(r *runConfig) { r.stopOnError = true }
}

// RunWithOutputDir pins the output directory instead of a dated one.
func RunWithOutputDir(dir string) RunOption {
	return func(r *runConfig) { r.outputDir = dir }
}

// StartOption configures a single Start call.
type StartOption func(*startConfig)

type startConfig struct {
	startPart int
	outputDir string
}

// StartWithPart begins the session at a 1-based part.
func StartWithPart(n int) StartOption {
	return func(s *startConfig) { s.startPart = n }
}

// StartWithOutputDir pins the session's output directory.
func StartWithOutputDir(dir string) StartOption {
	return func(s *startConfig) { s.outputDir = dir }
}

// StepOption configures a single Step call.
type StepOption func(*stepConfig)

type stepConfig struct {
	retry bool
	skip  bool
}

// StepWithRetry re-runs the current step without advancing the cursor.
func StepWithRetry() StepOption {
	return func(s *stepConfig) { s.retry = true }
}

// StepWithSkip records the current step as skipped without executing it.
func StepWithSkip() StepOption {
	return func(s *stepConfig) { s.skip = true }
}
