package scorm

// InitResult is what a runtime reports from Initialize.
type InitResult struct {
	Success bool   `json:"success"`
	Version string `json:"version"`
}

// Runtime is the host LMS API. Get on an unset element returns "" and no
// error. Set is buffered by the runtime until Commit.
type Runtime interface {
	Configure(version Version, debug bool)
	Initialize() InitResult
	Get(path string) (string, error)
	Set(path, value string) error
	Commit() error
	Terminate() error
}

// UnavailableRuntime stands in when no LMS API is present, as in a browser
// preview. Initialize always fails.
type UnavailableRuntime struct{}

func (UnavailableRuntime) Configure(Version, bool) {}

func (UnavailableRuntime) Initialize() InitResult {
	return InitResult{}
}

func (UnavailableRuntime) Get(string) (string, error) {
	return "", nil
}

func (UnavailableRuntime) Set(string, string) error {
	return nil
}

func (UnavailableRuntime) Commit() error {
	return nil
}

func (UnavailableRuntime) Terminate() error {
	return nil
}
