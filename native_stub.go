//go:build !picosdk

package picodaq

// NewNativeScopeDriver reports ErrNoLibrary: this binary was built without
// the picosdk tag.
func NewNativeScopeDriver() (ScopeDriver, error) {
	return nil, ErrNoLibrary
}

// NewNativeDrDAQDriver reports ErrNoLibrary: this binary was built without
// the picosdk tag.
func NewNativeDrDAQDriver() (DrDAQDriver, error) {
	return nil, ErrNoLibrary
}
