package calculator

import "errors"

var (
	// ErrMissingField is returned when a configuration field required by the variant is absent.
	ErrMissingField = errors.New("required configuration field is missing")
	// ErrInvalidField is returned when a configuration field is not a usable number.
	ErrInvalidField = errors.New("configuration field is invalid")
	// ErrInvalidBin is returned when a bin template has an empty or inverted range.
	ErrInvalidBin = errors.New("bin template is invalid")
	// ErrUnknownVariant is returned for a calculator variant that does not exist.
	ErrUnknownVariant = errors.New("unknown calculator variant")
	// ErrPlateOverflow is returned when the classified wells do not fit on the destination plate.
	ErrPlateOverflow = errors.New("wells exceed destination plate capacity")

	// ErrMissingConcentration is recorded for an occupied well without a concentration.
	ErrMissingConcentration = errors.New("well does not have a concentration")
	// ErrInvalidConcentration is recorded for a well with a negative concentration.
	ErrInvalidConcentration = errors.New("well concentration must not be negative")
	// ErrMissingCycleCount is recorded for an occupied well without an assigned cycle count.
	ErrMissingCycleCount = errors.New("well does not have a cycle count")
	// ErrMissingSampleVolume is recorded for an occupied well without a sample volume.
	ErrMissingSampleVolume = errors.New("well does not have a sample volume")
)
