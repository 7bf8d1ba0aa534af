package app

import (
	"github.com/kart-io/version"
	"github.com/spf13/cobra"

	"github.com/kart-io/newslens/pkg/utils/json"
)

// GetVersion returns the version string.
func GetVersion() string {
	return version.Get().GitVersion
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// 不需要加载配置
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(version.Get())
		},
	}
}
