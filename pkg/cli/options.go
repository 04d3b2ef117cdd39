package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ivyci/enginectl/pkg/options"
)

func (c *CLI) newOptionsCmd() *cobra.Command {
	var flags deployFlags

	cmd := &cobra.Command{
		Use:   "options",
		Short: "Print the deployment options that would be delivered",
		Long: `Render the options file that is placed beside each artifact. With an options
template the ${key} placeholders are filled from the option values and the
--property flags; otherwise a YAML document with the non-default values is
generated. Nothing is delivered when every option has its default value.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := flags.apply(cmd, c.settings)
			if err != nil {
				return err
			}

			rendered, err := options.Render(settings.Deploy.OptionsFile, settings.Deploy.Options, settings.Deploy.Properties)
			if err != nil {
				return err
			}
			for _, key := range rendered.Unresolved {
				c.printWarning(fmt.Sprintf("Placeholder ${%s} has no value", key))
			}
			if rendered.Data == nil {
				c.printInfo("All options have their default values, no options file is delivered")
				return nil
			}

			_, err = c.output.Write(rendered.Data)
			return err
		},
	}

	flags.registerOptions(cmd)
	return cmd
}

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of enginectl",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(c.output, "enginectl v%s\n", c.config.Version)
		},
	}
}
