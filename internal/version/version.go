// Package version holds the release version stamped into the user agent and --version output.
package version

// Current is bumped on every release, without a leading "v".
const Current = "0.1.0"
