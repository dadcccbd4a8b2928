package bundle

import (
	"bufio"
	"fmt"
	"os"

	"github.com/cpmech/smallbody/errs"
)

// SaveConnectivity writes the three dense Q×Q connectivity matrices
// (residual RMS, overlap fraction, accepted-pair count) as whitespace-
// separated rows, one matrix per stanza introduced by a "residual",
// "overlap", or "count" header line (spec §6 "three Q×Q dense matrices").
// Absent edges already carry the -1 sentinel from newConnectivity.
func SaveConnectivity(c Connectivity, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(errs.IOError, err, "creating connectivity file %q", path)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	defer w.Flush()

	if _, err := fmt.Fprintf(w, "n %d\n", c.N); err != nil {
		return errs.Wrap(errs.IOError, err, "writing connectivity file %q", path)
	}
	if err := writeMatrix(w, "residual", c.Residual, path); err != nil {
		return err
	}
	if err := writeMatrix(w, "overlap", c.Overlap, path); err != nil {
		return err
	}
	countF := make([][]float64, len(c.PairCount))
	for i, row := range c.PairCount {
		countF[i] = make([]float64, len(row))
		for j, v := range row {
			countF[i][j] = float64(v)
		}
	}
	if err := writeMatrix(w, "count", countF, path); err != nil {
		return err
	}
	return w.Flush()
}

func writeMatrix(w *bufio.Writer, name string, m [][]float64, path string) error {
	if _, err := fmt.Fprintf(w, "%s\n", name); err != nil {
		return errs.Wrap(errs.IOError, err, "writing connectivity file %q", path)
	}
	for _, row := range m {
		for j, v := range row {
			sep := " "
			if j == 0 {
				sep = ""
			}
			if _, err := fmt.Fprintf(w, "%s%.10g", sep, v); err != nil {
				return errs.Wrap(errs.IOError, err, "writing connectivity file %q", path)
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return errs.Wrap(errs.IOError, err, "writing connectivity file %q", path)
		}
	}
	return nil
}
