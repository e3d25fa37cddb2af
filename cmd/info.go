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
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	infoRaw   bool
	infoWidth int
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Summarize the stored short positions and the last update",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myLibrary := openLibrary(ctx)
		defer myLibrary.Close()

		summary, err := myLibrary.Summary(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("could not create library summary document")
		}

		if err := writeSummary(cmd.OutOrStdout(), summary, infoRaw, infoWidth); err != nil {
			log.Fatal().Err(err).Msg("could not render summary document")
		}
	},
}

// writeSummary prints the markdown summary, styled for the terminal unless raw
// output was requested
func writeSummary(out io.Writer, summary string, raw bool, width int) error {
	if raw {
		_, err := fmt.Fprint(out, summary)
		return err
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return err
	}

	rendered, err := renderer.Render(summary)
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(out, rendered)
	return err
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().BoolVar(&infoRaw, "raw", false, "print the summary as plain markdown")
	infoCmd.Flags().IntVar(&infoWidth, "width", 80, "wrap rendered output at this width")
}
