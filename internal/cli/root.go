package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "distropack",
		Short: "Build MongoDB packages and distro-native repositories",
		Long: `Distropack makes Debian and RPM packages from the prebuilt binary
tarballs and assembles them into repositories apt and yum clients can
consume directly. It must run on a Debianoid host: Debian provides tools
to make RPMs, but RPM-based systems don't carry the Debian packaging
tools.

Host prerequisites: dpkg-dev, rpm, debhelper, fakeroot, createrepo, git,
and the distribution signing keys in the gpg keyring.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.InfoLevel)
			}
		},
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(NewBuildCmd())

	return rootCmd
}
