package memutils

import (
	cerrors "github.com/cockroachdb/errors"
	"golang.org/x/exp/constraints"
)

type Number interface {
	~int | ~uint | ~uint64
}

func CheckPow2[T Number](number T, name string) error {
	if number == 0 || number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

// CheckRange returns OutOfRangeError if value is not within [min, max]
func CheckRange[T constraints.Integer](value, min, max T, name string) error {
	if value < min || value > max {
		return cerrors.Wrapf(OutOfRangeError, "%s is %d, expected a value within [%d, %d]", name, value, min, max)
	}
	return nil
}

// SaturatingInc returns value+1, or max if value has already reached max. The counter never wraps.
func SaturatingInc[T constraints.Unsigned](value T, max T) T {
	if value >= max {
		return max
	}
	return value + 1
}

// MaxValue returns the largest value that fits in the given number of bits
func MaxValue[T constraints.Unsigned](bits uint) T {
	return T((uint64(1) << bits) - 1)
}

func AlignUp(value uint64, alignment uint64) uint64 {
	return (value + alignment - 1) & ^(alignment - 1)
}

func AlignDown(value uint64, alignment uint64) uint64 {
	return value & ^(alignment - 1)
}
