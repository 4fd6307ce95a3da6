package services

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/skillswap/backend/internal/models"
)

// DefaultDuration is used when a request omits the session length.
var DefaultDuration = decimal.NewFromInt(1)

// MaxDurationHours caps one session.
const MaxDurationHours = 24

var (
	maxDuration = decimal.NewFromInt(MaxDurationHours)
	maxTotal    = decimal.NewFromInt(math.MaxInt32)
)

// ValidRate reports whether rate is inside the allowed credits-per-hour band.
func ValidRate(rate int) bool {
	return rate >= models.MinCreditsPerHour && rate <= models.MaxCreditsPerHour
}

// Price returns rate × duration as whole credits. Durations that are not
// positive, exceed MaxDurationHours, or produce a fractional price are
// rejected.
func Price(rate int, duration decimal.Decimal) (int, error) {
	if !duration.IsPositive() || duration.GreaterThan(maxDuration) {
		return 0, ErrInvalidDuration
	}
	total := decimal.NewFromInt(int64(rate)).Mul(duration)
	if !total.Equal(total.Truncate(0)) || !total.IsPositive() || total.GreaterThan(maxTotal) {
		return 0, ErrInvalidDuration
	}
	return int(total.IntPart()), nil
}

// ResolveRate picks the rate a booking is charged at. A listing, when the
// teacher has one, is authoritative and a disagreeing client rate is
// refused. Without a listing the client rate must sit in the allowed band.
func ResolveRate(listing *models.SkillListing, clientRate int) (int, error) {
	if listing != nil {
		if clientRate != 0 && clientRate != listing.CreditsPerHour {
			return 0, ErrRateMismatch
		}
		return listing.CreditsPerHour, nil
	}
	if !ValidRate(clientRate) {
		return 0, fmt.Errorf("%w: credits per hour must be between %d and %d", ErrValidation, models.MinCreditsPerHour, models.MaxCreditsPerHour)
	}
	return clientRate, nil
}
