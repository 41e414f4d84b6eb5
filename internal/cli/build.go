package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/10gen/distropack/internal/assemble"
	"github.com/10gen/distropack/internal/builder"
	"github.com/10gen/distropack/internal/builder/deb"
	"github.com/10gen/distropack/internal/builder/rpm"
	"github.com/10gen/distropack/internal/distro"
	"github.com/10gen/distropack/internal/fetch"
	"github.com/10gen/distropack/internal/layout"
	"github.com/10gen/distropack/internal/models"
	"github.com/10gen/distropack/internal/pkgspec"
	"github.com/10gen/distropack/internal/repo"
	"github.com/10gen/distropack/internal/runner"
	"github.com/10gen/distropack/internal/scm"
	"github.com/10gen/distropack/internal/signer"
)

const product = "mongodb-linux"

// NewBuildCmd creates the build command
func NewBuildCmd() *cobra.Command {
	var config models.BuildConfig

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build packages and regenerate repositories",
		Long: `Builds packages for every selected (distro, arch) pair, regenerates
the per-family repository indexes, and optionally promotes the finished
repository trees into the published location.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateConfig(&config); err != nil {
				return err
			}
			return runBuild(cmd.Context(), &config)
		},
	}

	cmd.Flags().StringVarP(&config.Version, "server-version", "s", "", "Server version to build (e.g. 2.7.8-rc0)")
	cmd.Flags().StringVarP(&config.MetadataGitspec, "metadata-gitspec", "m", "", "Gitspec to use for package metadata files")
	cmd.Flags().IntVarP(&config.ReleaseNumber, "release-number", "r", 0, "RPM release number base")
	cmd.Flags().StringSliceVarP(&config.Distros, "distros", "d", distro.Defaults(), "Distros to build for")
	cmd.Flags().StringSliceVarP(&config.Arches, "arches", "a", distro.DefaultArches, "Architectures to build")
	cmd.Flags().StringVarP(&config.Tarball, "tarball", "t", "", "Local tarball to package instead of downloading (only valid with one distro/arch combination)")

	cmd.Flags().StringVar(&config.SrcDir, "src-dir", "..", "Git repository holding the packaging metadata")
	cmd.Flags().StringVar(&config.WorkDir, "work-dir", "", "Scratch directory (default: a fresh temp directory)")
	cmd.Flags().StringVar(&config.OutDir, "out-dir", "", "Published repository root; skip promotion when empty")
	cmd.Flags().StringVar(&config.DownloadURL, "download-url", fetch.DefaultURL, "Binary tarball URL template (arch, version)")
	cmd.Flags().StringSliceVar(&config.Excludes, "exclude", []string{"mongosniff"}, "Binaries to drop from the unpacked set")
	cmd.Flags().IntVarP(&config.Jobs, "jobs", "j", 1, "Concurrent (distro, arch) builds")
	cmd.Flags().DurationVar(&config.ToolTimeout, "tool-timeout", 30*time.Minute, "Deadline for each external tool invocation")

	cmd.Flags().StringVarP(&config.GPGKeyPath, "gpg-key", "k", "", "Private key for in-process repository signing (default: external gpg)")
	cmd.Flags().StringVarP(&config.GPGPassphrase, "gpg-passphrase", "p", "", "Passphrase for --gpg-key")
	cmd.Flags().StringVar(&config.DebSigningKey, "deb-signing-key", "", "Identity passed to dpkg-buildpackage -k (default: unsigned)")

	_ = cmd.MarkFlagRequired("server-version")

	return cmd
}

func validateConfig(config *models.BuildConfig) error {
	for _, name := range config.Distros {
		if _, err := distro.Lookup(name); err != nil {
			return err
		}
	}
	for _, arch := range config.Arches {
		switch arch {
		case "i686", "x86_64":
		default:
			return &models.BuildError{
				Type: models.ErrConfig,
				Err:  fmt.Errorf("unknown architecture %q (known: %v)", arch, distro.DefaultArches),
			}
		}
	}
	if config.Tarball != "" {
		if len(config.Distros)*len(config.Arches) > 1 {
			return &models.BuildError{
				Type: models.ErrConfig,
				Err:  errors.New("can only specify a local tarball with one distro/arch combination"),
			}
		}
		if _, err := os.Stat(config.Tarball); err != nil {
			return &models.BuildError{
				Type: models.ErrConfig,
				Err:  fmt.Errorf("tarball %s does not exist", config.Tarball),
			}
		}
	}
	if config.Jobs < 1 {
		config.Jobs = 1
	}
	return nil
}

// pipeline holds the collaborators for one build run.
type pipeline struct {
	config    *models.BuildConfig
	spec      *pkgspec.Spec
	workDir   string
	fetcher   *fetch.Fetcher
	assembler *assemble.Assembler
	publisher *repo.Publisher
	backends  map[distro.Family]builder.Backend
}

func runBuild(ctx context.Context, config *models.BuildConfig) error {
	spec, err := pkgspec.New(config.Version, config.MetadataGitspec, config.ReleaseNumber)
	if err != nil {
		return err
	}

	profiles := make([]*distro.Profile, 0, len(config.Distros))
	for _, name := range config.Distros {
		p, err := distro.Lookup(name)
		if err != nil {
			return err
		}
		profiles = append(profiles, p)
	}

	workDir := config.WorkDir
	if workDir == "" {
		workDir, err = os.MkdirTemp("", "distropack-")
		if err != nil {
			return &models.BuildError{Type: models.ErrFileOp, Err: err}
		}
	}
	logrus.Infof("working in directory %s", workDir)

	var sig signer.Signer
	if config.GPGKeyPath != "" {
		sig, err = signer.NewGPGSigner(config.GPGKeyPath, config.GPGPassphrase)
		if err != nil {
			return &models.BuildError{Type: models.ErrConfig, Err: err}
		}
		logrus.Info("signing repository metadata in process")
	}

	run := &runner.Runner{Timeout: config.ToolTimeout}
	git := &scm.Git{Dir: config.SrcDir, Run: run}

	pl := &pipeline{
		config:  config,
		spec:    spec,
		workDir: workDir,
		fetcher: &fetch.Fetcher{
			CacheDir:    workDir,
			URLTemplate: config.DownloadURL,
			Product:     product,
		},
		assembler: &assemble.Assembler{
			SCM:      git,
			Product:  product,
			Excludes: config.Excludes,
		},
		publisher: &repo.Publisher{Run: run, WorkDir: workDir, Signer: sig},
		backends: map[distro.Family]builder.Backend{
			distro.FamilyDeb: &deb.Builder{
				Run:        run,
				SCM:        git,
				WorkDir:    workDir,
				SigningKey: config.DebSigningKey,
			},
			distro.FamilyRPM: &rpm.Builder{Run: run, WorkDir: workDir},
		},
	}

	// A tool failure aborts only its own (distro, arch) pair; the rest
	// still run. Errors are joined at the end.
	var (
		group    errgroup.Group
		mu       sync.Mutex
		failures []error
	)
	group.SetLimit(config.Jobs)
	for _, p := range profiles {
		for _, arch := range config.Arches {
			p, arch := p, arch
			group.Go(func() error {
				if err := pl.buildOne(ctx, p, arch); err != nil {
					logrus.Errorf("%s/%s failed: %v", p.Name(), arch, err)
					mu.Lock()
					failures = append(failures, pairError(p.Name(), arch, err))
					mu.Unlock()
				}
				return nil
			})
		}
	}
	_ = group.Wait()
	if len(failures) > 0 {
		return errors.Join(failures...)
	}

	if config.OutDir != "" {
		if err := pl.publish(profiles); err != nil {
			return err
		}
	}
	logrus.Info("all packages built")
	return nil
}

// pairError tags a pair failure with its (distro, arch) without flattening
// the taxonomy: a config or filesystem error stays one under the wrapper.
func pairError(distroName, arch string, err error) *models.BuildError {
	typ := models.ErrExternalTool
	var inner *models.BuildError
	if errors.As(err, &inner) {
		typ = inner.Type
	}
	return &models.BuildError{Type: typ, Distro: distroName, Arch: arch, Err: err}
}

// buildOne runs the full pipeline for one (distro, arch) pair: fetch,
// assemble, build, reindex.
func (pl *pipeline) buildOne(ctx context.Context, p *distro.Profile, arch string) error {
	var tarball string
	var err error
	if pl.config.Tarball != "" {
		tarball, err = pl.fetcher.UseLocal(pl.config.Tarball, arch, pl.spec.Version())
	} else {
		tarball, err = pl.fetcher.Fetch(ctx, arch, pl.spec.Version())
	}
	if err != nil {
		return err
	}

	staging, err := layout.StagingDir(pl.workDir, p, arch, pl.spec)
	if err != nil {
		return err
	}
	if err := pl.assembler.Populate(ctx, staging, tarball, arch, pl.spec); err != nil {
		return err
	}

	backend, ok := pl.backends[p.Family()]
	if !ok {
		return &models.BuildError{
			Type: models.ErrConfig,
			Err:  fmt.Errorf("no backend for package family %v", p.Family()),
		}
	}
	packages, err := backend.Build(ctx, p, arch, pl.spec, staging)
	if err != nil {
		return err
	}
	logrus.Infof("built %d packages for %s/%s", len(packages), p.Name(), arch)

	return pl.publisher.MakeRepo(ctx, p, arch)
}

// publish promotes each distro's finished repository tree into the
// published root with the atomic symlink swap.
func (pl *pipeline) publish(profiles []*distro.Profile) error {
	if err := os.MkdirAll(pl.config.OutDir, 0755); err != nil {
		return &models.BuildError{Type: models.ErrFileOp, Err: err}
	}
	for _, p := range profiles {
		src := filepath.Join(pl.workDir, "repo", p.Name())
		if _, err := os.Stat(src); err != nil {
			continue // nothing built for this distro
		}
		if err := repo.Promote(src, filepath.Join(pl.config.OutDir, p.Name())); err != nil {
			return err
		}
	}
	return nil
}
