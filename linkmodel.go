package wmediumd

//
// Link modeling
//

import "math"

// LinkModel computes the received signal and the per-attempt error
// probability for a directional link. The variants are chosen at
// configuration-load time; exactly one is active for the lifetime of
// the medium.
type LinkModel interface {
	// Signal returns the received signal in dBm on src->dst.
	Signal(src, dst *Station) int

	// ErrorProb returns the probability in [0, 1] that one
	// transmit attempt on src->dst fails. dst is nil for
	// multicast destinations.
	ErrorProb(snr int, rateIdx int, freq uint32, frameLen int, src, dst *Station) float64

	// FixedRandom reports whether the medium draws the per-frame
	// random choice once and reuses it across all rate attempts.
	FixedRandom() bool
}

// snrMatrix is an N×N matrix of integer-dB SNR values indexed by
// src*N + dst. The diagonal is meaningless and never read.
type snrMatrix struct {
	n   int
	snr []int
}

// newSNRMatrix creates a matrix seeded with the default SNR.
func newSNRMatrix(n int) *snrMatrix {
	m := &snrMatrix{
		n:   n,
		snr: make([]int, n*n),
	}
	for idx := range m.snr {
		m.snr[idx] = SNRDefault
	}
	return m
}

func (m *snrMatrix) get(src, dst int) int {
	return m.snr[src*m.n+dst]
}

func (m *snrMatrix) set(src, dst, snr int) {
	m.snr[src*m.n+dst] = snr
}

// DefaultLinkModel assumes every link runs at the default SNR and
// consults the PER table for error decisions.
type DefaultLinkModel struct {
	// PER is the packet-error-rate lookup.
	PER PERFunc
}

var _ LinkModel = &DefaultLinkModel{}

// Signal implements LinkModel
func (dm *DefaultLinkModel) Signal(src, dst *Station) int {
	return SNRDefault + NoiseFloorDBm
}

// ErrorProb implements LinkModel
func (dm *DefaultLinkModel) ErrorProb(snr int, rateIdx int, freq uint32, frameLen int, src, dst *Station) float64 {
	return dm.PER(snr, rateIdx, frameLen)
}

// FixedRandom implements LinkModel
func (dm *DefaultLinkModel) FixedRandom() bool {
	return false
}

// SNRMatrixModel reads per-link SNR from an explicit matrix and
// consults the PER table for error decisions.
type SNRMatrixModel struct {
	// matrix holds the per-link SNR.
	matrix *snrMatrix

	// per is the packet-error-rate lookup.
	per PERFunc
}

var _ LinkModel = &SNRMatrixModel{}

// NewSNRMatrixModel creates a model for n stations with every link
// at the default SNR.
func NewSNRMatrixModel(n int, per PERFunc) *SNRMatrixModel {
	return &SNRMatrixModel{
		matrix: newSNRMatrix(n),
		per:    per,
	}
}

// SetSNR sets the SNR of both directions of a link.
func (sm *SNRMatrixModel) SetSNR(a, b, snr int) {
	sm.matrix.set(a, b, snr)
	sm.matrix.set(b, a, snr)
}

// SetSNROneWay sets the SNR of a single direction.
func (sm *SNRMatrixModel) SetSNROneWay(src, dst, snr int) {
	sm.matrix.set(src, dst, snr)
}

// SNR returns the SNR of a directional link.
func (sm *SNRMatrixModel) SNR(src, dst int) int {
	return sm.matrix.get(src, dst)
}

// Signal implements LinkModel
func (sm *SNRMatrixModel) Signal(src, dst *Station) int {
	if dst == nil {
		return SNRDefault + NoiseFloorDBm
	}
	return sm.matrix.get(src.Index, dst.Index) + NoiseFloorDBm
}

// ErrorProb implements LinkModel
func (sm *SNRMatrixModel) ErrorProb(snr int, rateIdx int, freq uint32, frameLen int, src, dst *Station) float64 {
	return sm.per(snr, rateIdx, frameLen)
}

// FixedRandom implements LinkModel
func (sm *SNRMatrixModel) FixedRandom() bool {
	return false
}

// ErrorProbModel reads the per-link error probability from an
// explicit matrix, independent of rate and length. With this model
// the medium draws the frame's random choice once and reuses it for
// every rate attempt.
type ErrorProbModel struct {
	// n is the station count.
	n int

	// probs is the N×N error-probability matrix.
	probs []float64
}

var _ LinkModel = &ErrorProbModel{}

// NewErrorProbModel creates a model for n stations with every link
// at zero error probability.
func NewErrorProbModel(n int) *ErrorProbModel {
	return &ErrorProbModel{
		n:     n,
		probs: make([]float64, n*n),
	}
}

// SetErrorProb sets the error probability of both directions of a link.
func (em *ErrorProbModel) SetErrorProb(a, b int, prob float64) {
	em.probs[a*em.n+b] = prob
	em.probs[b*em.n+a] = prob
}

// Signal implements LinkModel
func (em *ErrorProbModel) Signal(src, dst *Station) int {
	return SNRDefault + NoiseFloorDBm
}

// ErrorProb implements LinkModel. Multicast destinations return zero;
// the result is unused on that path.
func (em *ErrorProbModel) ErrorProb(snr int, rateIdx int, freq uint32, frameLen int, src, dst *Station) float64 {
	if dst == nil {
		return 0
	}
	return em.probs[src.Index*em.n+dst.Index]
}

// FixedRandom implements LinkModel
func (em *ErrorProbModel) FixedRandom() bool {
	return true
}

// Log-distance path-loss reference parameters.
const (
	pathLossFreqHz   = 2.412e9
	speedOfLightMPS  = 2.99792458e8
	pathLossMinMeter = 0.001
)

// PathLossModel derives the SNR matrix from station positions and
// transmit power with the log-distance model:
//
//	PL = PL0 + 10·γ·log10(d) + Xg
//
// where PL0 is the free-space loss at one meter for the reference
// frequency. The matrix is recomputed whenever stations move.
type PathLossModel struct {
	// Exponent is the path-loss exponent γ.
	Exponent float64

	// Xg is the fading offset added to every path.
	Xg float64

	// matrix is the derived SNR matrix.
	matrix *snrMatrix

	// per is the packet-error-rate lookup.
	per PERFunc
}

var _ LinkModel = &PathLossModel{}

// NewPathLossModel creates a path-loss model for n stations.
func NewPathLossModel(n int, exponent, xg float64, per PERFunc) *PathLossModel {
	return &PathLossModel{
		Exponent: exponent,
		Xg:       xg,
		matrix:   newSNRMatrix(n),
		per:      per,
	}
}

// pl0 is the reference path loss at one meter.
func pl0() float64 {
	return 20 * math.Log10(4*math.Pi*pathLossFreqHz/speedOfLightMPS)
}

// Recompute rebuilds the SNR matrix from current positions.
func (pm *PathLossModel) Recompute(stations []*Station) {
	for _, src := range stations {
		for _, dst := range stations {
			if src == dst {
				continue
			}
			d := math.Hypot(src.X-dst.X, src.Y-dst.Y)
			if d < pathLossMinMeter {
				d = pathLossMinMeter
			}
			pl := pl0() + 10*pm.Exponent*math.Log10(d) + pm.Xg
			snr := float64(src.TXPowerDBm) - pl - NoiseFloorDBm
			pm.matrix.set(src.Index, dst.Index, int(math.Round(snr)))
		}
	}
}

// SNR returns the derived SNR of a directional link.
func (pm *PathLossModel) SNR(src, dst int) int {
	return pm.matrix.get(src, dst)
}

// Signal implements LinkModel
func (pm *PathLossModel) Signal(src, dst *Station) int {
	if dst == nil {
		return SNRDefault + NoiseFloorDBm
	}
	return pm.matrix.get(src.Index, dst.Index) + NoiseFloorDBm
}

// ErrorProb implements LinkModel
func (pm *PathLossModel) ErrorProb(snr int, rateIdx int, freq uint32, frameLen int, src, dst *Station) float64 {
	return pm.per(snr, rateIdx, frameLen)
}

// FixedRandom implements LinkModel
func (pm *PathLossModel) FixedRandom() bool {
	return false
}
