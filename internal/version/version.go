// SPDX-License-Identifier: Apache-2.0

package version

// Injected at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)
