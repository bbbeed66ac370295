// Copyright 2022 The avcore Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package av

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTimeBase time base component is zero.
var ErrInvalidTimeBase = errors.New("invalid time base")

// TimeBase is the duration of one timestamp tick, num/den seconds.
// The zero value is invalid, use NewTimeBase.
type TimeBase struct {
	num uint32
	den uint32
}

// Common time bases.
var (
	TimeBaseMillisecond = TimeBase{num: 1, den: 1000}
	TimeBaseMicrosecond = TimeBase{num: 1, den: 1000000}
	TimeBase90kHz       = TimeBase{num: 1, den: 90000}
)

// NewTimeBase returns num/den or ErrInvalidTimeBase if either is zero.
func NewTimeBase(num, den uint32) (TimeBase, error) {
	if num == 0 || den == 0 {
		return TimeBase{}, fmt.Errorf("%w: %d/%d", ErrInvalidTimeBase, num, den)
	}
	return TimeBase{num: num, den: den}, nil
}

// MustTimeBase is like NewTimeBase but panics on error.
func MustTimeBase(num, den uint32) TimeBase {
	tb, err := NewTimeBase(num, den)
	if err != nil {
		panic(err)
	}
	return tb
}

// ParseTimeBase parses "num/den". A bare integer "n" is read as 1/n.
func ParseTimeBase(s string) (TimeBase, error) {
	numStr, denStr, found := strings.Cut(strings.TrimSpace(s), "/")
	if !found {
		numStr, denStr = "1", numStr
	}
	num, err := strconv.ParseUint(numStr, 10, 32)
	if err != nil {
		return TimeBase{}, fmt.Errorf("%w: %q", ErrInvalidTimeBase, s)
	}
	den, err := strconv.ParseUint(denStr, 10, 32)
	if err != nil {
		return TimeBase{}, fmt.Errorf("%w: %q", ErrInvalidTimeBase, s)
	}
	return NewTimeBase(uint32(num), uint32(den))
}

// Num numerator.
func (tb TimeBase) Num() uint32 { return tb.num }

// Den denominator.
func (tb TimeBase) Den() uint32 { return tb.den }

// Valid reports whether both components are positive.
func (tb TimeBase) Valid() bool {
	return tb.num != 0 && tb.den != 0
}

func (tb TimeBase) String() string {
	return strconv.FormatUint(uint64(tb.num), 10) + "/" + strconv.FormatUint(uint64(tb.den), 10)
}

// Rescale converts ts from tb to dst.
func (tb TimeBase) Rescale(ts Timestamp, dst TimeBase) Timestamp {
	return Rescale(ts, tb, dst)
}

// Timestamp is a tick count in the time base of its stream.
type Timestamp int64

// NoTimestamp marks an absent timestamp.
const NoTimestamp = Timestamp(math.MinInt64)

// Valid reports whether ts is not NoTimestamp.
func (ts Timestamp) Valid() bool {
	return ts != NoTimestamp
}

// Duration converts ts in tb to a time.Duration.
func (ts Timestamp) Duration(tb TimeBase) time.Duration {
	return time.Duration(Rescale(ts, tb, TimeBase{num: 1, den: uint32(time.Second)}))
}

// Rescale converts ts from src to dst: ts * src.num * dst.den / (src.den * dst.num).
//
// The product is computed in 128 bits so every int64 input is exact up to the
// final division, which truncates toward zero. Results outside the int64
// range saturate. Invalid time bases return ts unchanged.
func Rescale(ts Timestamp, src, dst TimeBase) Timestamp {
	if !src.Valid() || !dst.Valid() {
		return ts
	}
	if src == dst {
		return ts
	}

	neg := ts < 0
	mag := uint64(ts)
	if neg {
		// Two's complement magnitude, correct for MinInt64 too.
		mag = -mag
	}

	mul := uint64(src.num) * uint64(dst.den)
	div := uint64(src.den) * uint64(dst.num)

	hi, lo := bits.Mul64(mag, mul)
	if hi >= div {
		// Quotient does not fit in 64 bits.
		return saturate(neg)
	}
	q, _ := bits.Div64(hi, lo, div)

	if neg {
		if q > 1<<63 {
			return saturate(true)
		}
		return Timestamp(-q)
	}
	if q > math.MaxInt64 {
		return saturate(false)
	}
	return Timestamp(q)
}

func saturate(neg bool) Timestamp {
	if neg {
		return math.MinInt64
	}
	return math.MaxInt64
}
