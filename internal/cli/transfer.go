package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/cobra"
)

const stdio = "-"

func newImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Append quotes from a JSON file",
		Long: `Append every quote in a JSON array file. Files ending in .gz are decompressed.
Use "-" to read from stdin. An invalid file adds nothing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			r, closeFn, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer func() {
				if cerr := closeFn(); err == nil {
					err = cerr
				}
			}()

			env := envFrom(cmd)

			n, err := env.Quotes.Import(cmd.Context(), r)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d quotes (%d total)\n", n, env.Quotes.Count())

			return err
		},
	}
}

func newExportCommand() *cobra.Command {
	var compress bool

	cmd := &cobra.Command{
		Use:   "export [FILE]",
		Short: "Write all quotes as a JSON array",
		Long:  `Write all quotes to FILE, or stdout when omitted. A .gz suffix or --gzip compresses the output.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			path := stdio
			if len(args) == 1 {
				path = args[0]
			}

			w := cmd.OutOrStdout()

			if path != stdio {
				var f *os.File

				f, err = os.Create(path)
				if err != nil {
					return fmt.Errorf("creating %s: %w", path, err)
				}
				defer closeInto(&err, f)

				w = f
				compress = compress || strings.HasSuffix(path, ".gz")
			}

			quotes := envFrom(cmd).Quotes
			if compress {
				return quotes.ExportGzip(cmd.Context(), w)
			}

			return quotes.Export(cmd.Context(), w)
		},
	}

	cmd.Flags().BoolVar(&compress, "gzip", false, "gzip the output")

	return cmd
}

// closeInto closes c, reporting its error through *err unless *err is already set.
func closeInto(err *error, c io.Closer) {
	if cerr := c.Close(); *err == nil && cerr != nil {
		*err = fmt.Errorf("closing output: %w", cerr)
	}
}

// openInput opens path (stdin for "-") and unwraps gzip for .gz paths.
func openInput(cmd *cobra.Command, path string) (io.Reader, func() error, error) {
	if path == stdio {
		return cmd.InOrStdin(), func() error { return nil }, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}

	if !strings.HasSuffix(path, ".gz") {
		return f, f.Close, nil
	}

	zr, err := gzip.NewReader(f)
	if err != nil {
		_ = f.Close()

		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return zr, func() error {
		zerr := zr.Close()
		if ferr := f.Close(); zerr == nil {
			zerr = ferr
		}

		return zerr
	}, nil
}
