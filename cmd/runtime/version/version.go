package version

// version is overridden at build time through ldflags.
var version = "develop"

// Get returns the running binary version.
func Get() string {
	return version
}
