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
package pkginfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"slices"

	"github.com/rs/zerolog/log"
)

const Name = "ssrdata"

// Set with -ldflags at release time. When empty, values are read from the
// module build info that `go install` embeds.
var (
	BuildDate  string
	CommitHash string
	Version    string
)

func init() {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	fillFromBuildInfo(buildInfo)
}

func fillFromBuildInfo(buildInfo *debug.BuildInfo) {
	if Version == "" && buildInfo.Main.Version != "" {
		Version = buildInfo.Main.Version
	}

	for _, setting := range buildInfo.Settings {
		switch setting.Key {
		case "vcs.revision":
			if CommitHash == "" {
				CommitHash = setting.Value
			}
		case "vcs.time":
			if BuildDate == "" {
				BuildDate = setting.Value
			}
		}
	}
}

// BuildVersionString returns a version info string suitable for printing on the command line
func BuildVersionString() string {
	osArch := runtime.GOOS + "/" + runtime.GOARCH
	goVersion := runtime.Version()

	return fmt.Sprintf(`%s %s %s

Build Date: %s
Commit: %s
Built with: %s`, Name, Version, osArch, BuildDate, CommitHash, goVersion)
}

// GetDependencyList returns an array of all dependencies linked in with this program
// each string is of the form `package="version"`
func GetDependencyList() []string {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		log.Error().Msg("could not get package build info")
		return nil
	}

	return dependencyList(buildInfo)
}

func dependencyList(buildInfo *debug.BuildInfo) []string {
	deps := make([]string, 0, len(buildInfo.Deps))
	for _, dep := range buildInfo.Deps {
		deps = append(deps, fmt.Sprintf("%s=%q", dep.Path, dep.Version))
	}

	slices.Sort(deps)

	return deps
}
