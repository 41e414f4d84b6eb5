package models

import "time"

// BuildConfig contains the full configuration for one packaging run
type BuildConfig struct {
	// What to build
	Version         string // server version, e.g. "2.7.8-rc0"
	MetadataGitspec string // git revision for packaging metadata files
	ReleaseNumber   int    // release number base (0 means unset, treated as 1)
	Distros         []string
	Arches          []string

	// Tarball is a local binary archive to package instead of downloading.
	// Only valid when exactly one (distro, arch) pair is selected.
	Tarball string

	// Directories
	SrcDir  string // git repository holding the packaging metadata
	WorkDir string // scratch directory; a fresh temp dir when empty
	OutDir  string // published repository root; no promotion when empty

	// DownloadURL is the binary archive URL template with two %s verbs,
	// filled with (arch, version).
	DownloadURL string

	// Excludes lists binaries stripped from the unpacked set before the
	// backend builder runs.
	Excludes []string

	// Jobs bounds the worker pool over (distro, arch) pairs.
	Jobs int

	// ToolTimeout is the deadline applied to each external tool invocation.
	ToolTimeout time.Duration

	// In-process repository signing. When unset the external gpg binary is
	// used with its default discoverable identity.
	GPGKeyPath    string
	GPGPassphrase string

	// DebSigningKey is the identity handed to dpkg-buildpackage; packages
	// are built unsigned when empty.
	DebSigningKey string
}
