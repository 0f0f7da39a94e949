// Package tabular is the batch driver that applies a labeling function
// to one column of a delimited file and writes the results back as a
// new column. It is glue around the core tasks: all labeling semantics
// live in the parse and classify packages.
//
// No third-party CSV library is used; encoding/csv covers the format.
package tabular

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

// LabelFunc produces a label for one cell value. Both parse.Parser's
// Parse and classify.Classifier's Classify satisfy this shape.
type LabelFunc func(ctx context.Context, text string) (string, error)

// Options tunes a labeling run.
type Options struct {
	// Column is the header name of the input column.
	Column string

	// OutColumn is the header name for the label column appended to
	// the output. Defaults to Column + "_label".
	OutColumn string

	// Logger receives per-row progress; zap.NewNop by default.
	Logger *zap.Logger
}

// Label reads delimited rows from r, labels the configured column of
// every row and writes all rows to w with the label appended as a new
// column. Identical cell values are labeled once and the result reused,
// so repeated titles cost a single backend call.
//
// The first failing row aborts the run; partial output may have been
// written to w.
func Label(ctx context.Context, r io.Reader, w io.Writer, fn LabelFunc, opts Options) error {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.OutColumn == "" {
		opts.OutColumn = opts.Column + "_label"
	}

	reader := csv.NewReader(r)
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	columnIdx := -1
	for i, name := range header {
		if name == opts.Column {
			columnIdx = i
			break
		}
	}
	if columnIdx < 0 {
		return fmt.Errorf("column %q not found in header %v", opts.Column, header)
	}

	if err := writer.Write(append(header, opts.OutColumn)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	seen := make(map[string]string)
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read row %d: %w", row+1, err)
		}
		row++

		value := record[columnIdx]
		label, ok := seen[value]
		if !ok {
			label, err = fn(ctx, value)
			if err != nil {
				return fmt.Errorf("label row %d: %w", row, err)
			}
			seen[value] = label
		}

		opts.Logger.Debug("row labeled",
			zap.Int("row", row),
			zap.String("value", value),
			zap.String("label", label),
		)

		if err := writer.Write(append(record, label)); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	opts.Logger.Info("labeling run finished",
		zap.Int("rows", row),
		zap.Int("distinct_values", len(seen)),
	)
	return nil
}

// LabelFile is Label over file paths.
func LabelFile(ctx context.Context, inPath, outPath string, fn LabelFunc, opts Options) error {
	in, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	if err := Label(ctx, in, out, fn, opts); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
