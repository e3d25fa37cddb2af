// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/penny-vault/ssrdata/pkginfo"
	"github.com/spf13/cobra"
)

var (
	versionDeps  bool
	versionShort bool
	versionJSON  bool
)

type versionInfo struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Commit       string   `json:"commit"`
	BuildDate    string   `json:"buildDate"`
	Dependencies []string `json:"dependencies,omitempty"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version info",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeVersion(cmd.OutOrStdout())
	},
}

func writeVersion(out io.Writer) error {
	switch {
	case versionJSON:
		info := versionInfo{
			Name:      pkginfo.Name,
			Version:   pkginfo.Version,
			Commit:    pkginfo.CommitHash,
			BuildDate: pkginfo.BuildDate,
		}
		if versionDeps {
			info.Dependencies = pkginfo.GetDependencyList()
		}

		encoded, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return err
		}

		_, err = fmt.Fprintln(out, string(encoded))
		return err
	case versionShort:
		fmt.Fprintln(out, pkginfo.Version)
	default:
		fmt.Fprintln(out, pkginfo.BuildVersionString())
	}

	if versionDeps {
		fmt.Fprintf(out, "\n\n%s\n", strings.Join(pkginfo.GetDependencyList(), "\n"))
	}

	return nil
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&versionDeps, "deps", "d", false, "print dependencies")
	versionCmd.Flags().BoolVarP(&versionShort, "short", "s", false, "only print version number")
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "print version info as json")
}
