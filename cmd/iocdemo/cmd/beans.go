package cmd

import (
	"fmt"
	"strings"

	"github.com/GoCodeAlone/ioc"
	"github.com/spf13/cobra"
)

// NewBeansCommand creates the beans command
func NewBeansCommand(opts *options) *cobra.Command {
	var component string
	cmd := &cobra.Command{
		Use:   "beans",
		Short: "List the demo bean definitions",
		Long:  `Beans lists the demo definitions with their references, optionally filtered by component kind.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			appCtx, err := ioc.NewApplicationContext(ioc.NewTypeRegistry(), nil,
				ioc.WithDefinitions(demoDefinitions("memory://demo")))
			if err != nil {
				return err
			}

			names := appCtx.BeanNames()
			if component != "" {
				names = appCtx.ComponentNames(component)
			}
			out := cmd.OutOrStdout()
			for _, name := range names {
				def, _ := appCtx.Store().Get(name)
				recipe := def.TypeName
				if def.PluginPath != "" {
					recipe = "plugin " + ioc.ExpandPath(def.PluginPath)
				}
				fmt.Fprintf(out, "%-12s %-10s %s refs=[%s]\n", name, def.EffectiveScope(), recipe, strings.Join(def.References(), ","))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&component, "component", "", "only list beans tagged with this component kind")
	return cmd
}
