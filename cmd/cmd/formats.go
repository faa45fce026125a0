// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
package cmd

import (
	"encoding/hex"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/ostafen/diglet/internal/carve"
	"github.com/spf13/cobra"
)

func DefineFormatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formats",
		Short: "List the supported file formats and the default pairing weights",
		Long: `The 'formats' command displays the fixed set of JPEG/PNG signatures the
Signature Scanner matches against, and the default scoring weights the
Pairing Solver uses to rank candidate header/footer assignments.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         RunFormats,
	}
	return cmd
}

func RunFormats(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FORMAT\tEXT\tKIND\tSIGNATURE\tMAX-SIZE")

	for _, sig := range carve.BuiltinSignatures() {
		f := sig.Kind.Format()
		kind := "footer"
		if sig.Kind.IsHeader() {
			kind = "header"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
			f, f.Ext(), kind, hex.EncodeToString(sig.Pattern), carve.DefaultMaxFileSize(f))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	weights := carve.DefaultWeights()
	fmt.Fprintf(os.Stdout, "\nsolver weights: confidence=%.2f proximity=%.2f entropy=%.2f size=%.2f\n",
		weights.Confidence, weights.Proximity, weights.Entropy, weights.Size)
	return nil
}
