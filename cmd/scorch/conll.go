package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rawblock/coref-scorer/internal/input"
	"github.com/rawblock/coref-scorer/internal/logger"
)

func newConllCmd() *cobra.Command {
	var column int

	cmd := &cobra.Command{
		Use:   "conll <conll-file> [<out-dir>]",
		Short: "Convert a CoNLL-2012 file to clusters JSON documents",
		Long: `Convert every document of a CoNLL-2012 file to a clusters JSON document
named "<conll-file>.<document>.json". <conll-file> may be "-" for standard
input; <out-dir> defaults to the input's directory, or the working directory
for standard input.`,
		Example: "  scorch conll input.conll out/",
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outDir := ""
			if len(args) == 2 {
				outDir = args[1]
			}
			return runConll(cmd, args[0], outDir, column)
		},
		SilenceUsage: true,
	}

	cmd.Flags().IntVar(&column, "column", input.LastColumn, "Coreference column index, negative counts from the end")
	return cmd
}

func runConll(cmd *cobra.Command, conllFile, outDir string, column int) error {
	fileName := "stdin"
	var in io.Reader = cmd.InOrStdin()
	if conllFile != stdio {
		fileName = filepath.Base(conllFile)
		f, err := os.Open(conllFile)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	if outDir == "" {
		outDir = "."
		if conllFile != stdio {
			outDir = filepath.Dir(conllFile)
		}
	}

	docs, err := input.ParseFile(in, column)
	if err != nil {
		return fmt.Errorf("%s: %w", conllFile, err)
	}

	for _, d := range docs {
		path := filepath.Join(outDir, input.OutputName(fileName, d))
		if err := writeDocument(path, d); err != nil {
			return err
		}
		logger.Info("[Conll] Wrote document", "name", d.Name, "entities", len(d.Entities), "path", path)
	}
	return nil
}

func writeDocument(path string, d input.ConllDocument) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := input.EncodeDocument(f, d.ToClustersDocument()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
