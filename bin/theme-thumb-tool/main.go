// SPDX-FileCopyrightText: 2018 - 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/davecgh/go-spew/spew"
	"github.com/linuxdeepin/go-lib/log"
	dutils "github.com/linuxdeepin/go-lib/utils"
	"github.com/spf13/cobra"

	"github.com/linuxdeepin/dde-appearance/appearance"
	"github.com/linuxdeepin/dde-appearance/appearance/subthemes"
	"github.com/linuxdeepin/dde-appearance/appearance/thumbnail"
)

const (
	TypeAll        = "all"
	TypeGtk        = "gtk"
	TypeMeta       = "meta"
	TypeIcon       = "icon"
	TypeCursor     = "cursor"
	TypeBackground = "background"

	forceFlagUsage = "Force generate thumbnails"
	destDirUsage   = "Thumbnails output directory"
)

var logger = log.NewLogger("theme-thumb-tool")

var (
	_forceFlag  bool
	_destDir    string
	_configFile string
	_verbose    bool
	_framing    string
)

var rootCmd = &cobra.Command{
	Use:   "theme-thumb-tool",
	Short: "theme-thumb-tool - gtk/meta/icon/cursor/background thumbnail batch generator",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if _verbose {
			logger.SetLogLevel(log.LevelDebug)
		}
	},
	SilenceUsage: true,
}

var listCmd = &cobra.Command{
	Use:       "list [type]",
	Short:     "List the known themes or backgrounds",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{TypeGtk, TypeMeta, TypeIcon, TypeCursor, TypeBackground},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		type0 := TypeAll
		if len(args) == 1 {
			type0 = args[0]
		}
		entries, err := listEntries(cfg, type0)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if _verbose {
				spew.Fdump(cmd.OutOrStdout(), entry)
				continue
			}
			fmt.Fprintln(cmd.OutOrStdout(), entry.Name)
		}
		return nil
	},
}

var renderHelperCmd = &cobra.Command{
	Use:    "render-helper",
	Short:  "Serve preview requests on stdin/stdout",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		framing, err := thumbnail.ParseFraming(_framing)
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		// stdout carries pixels, keep log lines off it
		quiet := log.NewLogger("theme-thumb-tool/render-helper")
		quiet.SetLogLevel(log.LevelDisable)
		thumbnail.SetLogger(quiet)
		subthemes.SetLogger(quiet)
		logger = quiet

		renderer := newRenderer(cfg)
		return thumbnail.Serve(cmd.Context(), os.Stdin, os.Stdout, renderer, framing)
	},
}

func newGenerateCmd(type0, short string) *cobra.Command {
	return &cobra.Command{
		Use:   type0,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			files, err := generate(cmd.Context(), cfg, type0, _forceFlag)
			if err != nil {
				return err
			}
			moveThumbFiles(files)
			return nil
		},
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&_forceFlag, "force", "f", false, forceFlagUsage)
	flags.StringVarP(&_destDir, "output", "o", "", destDirUsage)
	flags.StringVar(&_configFile, "config", "", "Read this config file instead of the user one")
	flags.BoolVarP(&_verbose, "verbose", "v", false, "Show much more message")

	renderHelperCmd.Flags().StringVar(&_framing, "framing", thumbnail.FramingFramed.String(),
		"Pipe framing, framed or legacy")

	rootCmd.AddCommand(
		newGenerateCmd(TypeAll, "Generate all of the following types thumbnails"),
		newGenerateCmd(TypeGtk, "Generate all gtk theme thumbnails"),
		newGenerateCmd(TypeMeta, "Generate all meta theme thumbnails"),
		newGenerateCmd(TypeIcon, "Generate all icon theme thumbnails"),
		newGenerateCmd(TypeCursor, "Generate all cursor theme thumbnails"),
		newGenerateCmd(TypeBackground, "Generate all background thumbnails"),
		listCmd,
		renderHelperCmd,
	)
}

func loadConfig() (*appearance.Config, error) {
	if _configFile != "" {
		return appearance.LoadConfig(_configFile)
	}
	return appearance.LoadConfig(appearance.DefaultConfigFile())
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		os.Exit(1)
	}
}

func moveThumbFiles(files []string) {
	if len(_destDir) == 0 {
		return
	}

	err := os.MkdirAll(_destDir, 0755)
	if err != nil {
		logger.Warningf("create %q failed: %v", _destDir, err)
		return
	}
	for _, file := range files {
		dest := filepath.Join(_destDir, filepath.Base(file))
		if !_forceFlag && dutils.IsFileExist(dest) {
			continue
		}
		err = dutils.CopyFile(file, dest)
		if err != nil {
			logger.Warningf("copy file %q to %q failed: %v", file, dest, err)
			continue
		}
		err = os.Remove(file)
		if err != nil {
			logger.Warningf("delete file %q failed: %v", file, err)
		}
	}
}
