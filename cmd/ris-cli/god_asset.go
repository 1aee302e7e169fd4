package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/risengine/ris/internal/asset"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (c *cli) godAssetCmd() *cobra.Command {
	var path string
	godPath := func() string {
		if path != "" {
			return path
		}
		return filepath.Join(c.cfg.Assets.Directory, filepath.FromSlash(c.cfg.Assets.GodAsset))
	}

	cmd := &cobra.Command{
		Use:   "god_asset",
		Short: "Print or edit the god asset",
	}
	cmd.PersistentFlags().StringVarP(&path, "input", "i", "", "god asset file (default: the configured one)")

	printCmd := &cobra.Command{
		Use:   "print",
		Short: "Print every field as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := asset.ReadGodAssetFile(godPath())
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(g)
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <field> <value>",
		Short: "Point one field at another asset",
		Long:  "Point one field at another asset. A numeric value is an index, anything else a path.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := godPath()
			g, err := asset.ReadGodAssetFile(p)
			if err != nil {
				return err
			}
			id := asset.ParseAssetID(args[1])
			if err := g.SetField(args[0], id); err != nil {
				return err
			}
			b, err := g.Serialize()
			if err != nil {
				return err
			}
			if err := os.WriteFile(p, b, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], id)
			return nil
		},
	}

	cmd.AddCommand(printCmd, setCmd)
	return cmd
}
