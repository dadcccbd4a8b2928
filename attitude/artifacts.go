package attitude

import (
	"bufio"
	"fmt"
	"os"

	"github.com/cpmech/smallbody/errs"
)

// SaveStateHistory writes the per-time-index propagated state (and,
// optionally, its covariance) as row-major ASCII (spec §6 "state-history
// files"). Each row holds one time index: t, sigma (3), omega (3) for the
// bare state, or t, sigma (3), omega (3), the flattened 6x6 covariance
// (36) when withCov is true — the package's own augmented state is the
// 6-vector (sigma, omega); the spec's 144-column state+STM variant applies
// to the full 12-dimensional orbit+attitude augmented state assembled
// downstream by a caller that also holds the orbital position/velocity
// history, which this package does not carry (see DESIGN.md).
func SaveStateHistory(res Result, times []float64, path string, withCov bool) error {
	if len(res.History) != len(times) {
		return errs.New(errs.InputMalformed, "attitude: history has %d entries, times has %d", len(res.History), len(times))
	}
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(errs.IOError, err, "creating state-history file %q", path)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	defer w.Flush()

	for k, st := range res.History {
		if _, err := fmt.Fprintf(w, "%.10g %.10g %.10g %.10g %.10g %.10g %.10g",
			times[k], st.Sigma[0], st.Sigma[1], st.Sigma[2], st.Omega[0], st.Omega[1], st.Omega[2]); err != nil {
			return errs.Wrap(errs.IOError, err, "writing state-history file %q", path)
		}
		if withCov {
			if k >= len(res.CovHistory) {
				return errs.New(errs.InputMalformed, "attitude: cov history shorter than state history")
			}
			cov := res.CovHistory[k]
			for a := 0; a < 6; a++ {
				for b := 0; b < 6; b++ {
					if _, err := fmt.Fprintf(w, " %.10g", cov[a][b]); err != nil {
						return errs.Wrap(errs.IOError, err, "writing state-history file %q", path)
					}
				}
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return errs.Wrap(errs.IOError, err, "writing state-history file %q", path)
		}
	}
	return w.Flush()
}
