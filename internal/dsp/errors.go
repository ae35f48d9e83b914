package dsp

import "errors"

var (
	ErrInvalidOrder   = errors.New("dsp: filter order must be at least 1")
	ErrInvalidBand    = errors.New("dsp: cutoffs must satisfy 0 < low < high < nyquist")
	ErrUnstableFilter = errors.New("dsp: filter initial conditions are singular")
	ErrInvalidWindow  = errors.New("dsp: smoothing window must be odd and larger than the polynomial order")
)
