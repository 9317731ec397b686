// Copyright 2011 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command forge is the façade's CLI: a cobra command tree over
// internal/driver.Driver.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nozomi-build/forge/internal/driver"
	"github.com/nozomi-build/forge/internal/evaluator"
	"github.com/nozomi-build/forge/internal/fsmonitor"
	"github.com/nozomi-build/forge/internal/keys"
)

var (
	configPath string
	keepGoing  bool
	watch      bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "forge",
		Short: "forge is an incremental, memoizing build-graph evaluator",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "forge.yaml", "workspace configuration file")
	root.PersistentFlags().BoolVar(&keepGoing, "keep_going", false, "continue past failures instead of stopping at the first one")
	root.PersistentFlags().BoolVar(&watch, "watch", false, "watch the package locator root for changes before building")

	root.AddCommand(newBuildCmd())
	root.AddCommand(newQueryCmd())
	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newCleanCmd())
	return root
}

func newDriver() (*driver.Driver, workspaceConfig, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, cfg, err
	}
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	d := driver.New(driver.Config{
		Batch:             cfg.Batch,
		Threads:           cfg.Threads,
		ActionConcurrency: cfg.ActionConcurrency,
		Log:               log,
	})
	d.Reset()
	d.SetExternalInput(keys.PackageLocator, cfg.PackageLocator)
	d.SetExternalInput(keys.DefaultVisibility, cfg.DefaultVisibility)
	d.SetExternalInput(keys.TopLevelArtifactContext, map[string]string{})

	if watch {
		log.Info().Str("root", cfg.PackageLocator).Msg("watching package locator root")
		_, err := fsmonitor.New([]string{cfg.PackageLocator}, log, func(paths []string) {
			d.NotifyModifiedPaths(paths)
		})
		if err != nil {
			return nil, cfg, fmt.Errorf("watch %s: %w", cfg.PackageLocator, err)
		}
	}
	return d, cfg, nil
}

func parseLabel(label string) (pkgDir, name string) {
	if i := strings.LastIndex(label, ":"); i >= 0 {
		return label[:i], label[i+1:]
	}
	return label, label
}

func newBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build <pkg:target>...",
		Short: "execute the actions producing each target's artifact",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, _, err := newDriver()
			if err != nil {
				return err
			}
			byPkg := groupByPackage(args)
			for pkgDir, names := range byPkg {
				results, err := d.Execute(context.Background(), pkgDir, names, keepGoing)
				if err != nil && !keepGoing {
					return err
				}
				for name, res := range results {
					reportResult(cmd, pkgDir, name, res)
				}
			}
			return nil
		},
	}
}

func newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <pkg:target>...",
		Short: "analyze each target without executing its actions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, _, err := newDriver()
			if err != nil {
				return err
			}
			byPkg := groupByPackage(args)
			for pkgDir, names := range byPkg {
				results, err := d.Analyze(context.Background(), pkgDir, names, keepGoing)
				if err != nil && !keepGoing {
					return err
				}
				for name, res := range results {
					reportResult(cmd, pkgDir, name, res)
				}
			}
			return nil
		},
	}
}

func newQueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <package>...",
		Short: "resolve package names to directories without analyzing targets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, _, err := newDriver()
			if err != nil {
				return err
			}
			out, err := d.EvaluateTargetPatterns(context.Background(), args)
			for _, n := range args {
				v := out[n]
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> found=%v dir=%s\n", n, v.Found, v.Dir)
			}
			return err
		},
	}
}

func newCleanCmd() *cobra.Command {
	var window int64
	c := &cobra.Command{
		Use:   "clean",
		Short: "evict nodes that have been dirty for more than --window versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, _, err := newDriver()
			if err != nil {
				return err
			}
			deleted := d.DeleteOldNodes(window)
			fmt.Fprintf(cmd.OutOrStdout(), "evicted %d nodes\n", len(deleted))
			return nil
		},
	}
	c.Flags().Int64Var(&window, "window", 10, "version age beyond which a dirty node is evicted")
	return c
}

func groupByPackage(labels []string) map[string][]string {
	out := map[string][]string{}
	for _, l := range labels {
		pkgDir, name := parseLabel(l)
		out[pkgDir] = append(out[pkgDir], name)
	}
	return out
}

func reportResult(cmd *cobra.Command, pkgDir, name string, res evaluator.KeyResult) {
	if res.Kind == evaluator.ResultFail {
		fmt.Fprintf(cmd.OutOrStdout(), "%s:%s FAILED: %v\n", pkgDir, name, res.Err)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s:%s OK\n", pkgDir, name)
}
