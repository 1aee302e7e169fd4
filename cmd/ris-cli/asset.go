package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/risengine/ris/internal/asset"
	"github.com/risengine/ris/internal/importer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

func (c *cli) assetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "asset",
		Short: "Compile, decompile and import assets",
	}
	cmd.AddCommand(c.compileCmd(), c.decompileCmd(), c.importCmd(), c.terrainCmd())
	return cmd
}

func (c *cli) compileCmd() *cobra.Command {
	var noPaths bool
	cmd := &cobra.Command{
		Use:   "compile [source] [target]",
		Short: "Pack an asset directory into one archive",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, dst := paths(args, c.cfg.Assets.Directory, c.cfg.Assets.Compiled)
			if err := asset.Compile(src, dst, asset.CompileOptions{IncludePaths: !noPaths}, c.log); err != nil {
				return err
			}
			b, err := os.ReadFile(dst)
			if err != nil {
				return err
			}
			sum := blake2b.Sum256(b)
			c.log.Info("archive written", zap.String("path", dst), zap.Int("bytes", len(b)), zap.String("blake2b", hex.EncodeToString(sum[:])))
			fmt.Fprintf(cmd.OutOrStdout(), "compiled %s -> %s (%d bytes)\n", src, dst, len(b))
			return nil
		},
	}
	cmd.Flags().BoolVar(&noPaths, "no-paths", false, "omit the path trailer")
	return cmd
}

func (c *cli) decompileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decompile [source] [target]",
		Short: "Unpack an archive into a directory",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, dst := paths(args, c.cfg.Assets.Compiled, c.cfg.Assets.Directory)
			if err := asset.Decompile(src, dst, c.log); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "decompiled %s -> %s\n", src, dst)
			return nil
		},
	}
}

func (c *cli) importCmd() *cobra.Command {
	var force, debug bool
	cmd := &cobra.Command{
		Use:   "import [source] [target]",
		Short: "Convert raw sources into engine assets",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, dst := paths(args, c.cfg.Assets.Source, c.cfg.Assets.Directory)
			stats, err := importer.Import(cmd.Context(), src, dst, importer.Options{
				Compiler:    importer.Glslc{Path: c.cfg.Importer.Glslc},
				Parallelism: c.cfg.Importer.Parallelism,
				CacheFile:   c.cfg.Importer.CacheFile,
				Force:       force,
				Debug:       debug,
			}, c.log)
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d, skipped %d, failed %d\n", stats.Imported, stats.Skipped, stats.Failed)
			return err
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "ignore the digest cache")
	cmd.Flags().BoolVar(&debug, "debug", false, "keep debug info in shaders")
	return cmd
}

func (c *cli) terrainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "terrain <width> <target>",
		Short: "Write a flat terrain grid",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			width, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("width %q: %w", args[0], err)
			}
			p, err := asset.NewTerrainGrid(width)
			if err != nil {
				return err
			}
			b, err := asset.SerializeTerrain(p)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(args[1]), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(args[1], b, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "terrain %dx%d -> %s\n", width, width, args[1])
			return nil
		},
	}
}
