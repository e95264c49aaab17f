// Package version exposes build version information. Version, commit and
// build time are set at compile time via -ldflags:
//
//	go build -ldflags "-X github.com/nacos-group/nacos-serving-go/version.Version=1.2.0"
//
// When ldflags are absent the package falls back to VCS stamps embedded by
// the Go toolchain. The naming client advertises the short version in its
// registration metadata.
package version
