package subject

import (
	"fmt"

	"github.com/roach88/flicker/internal/region"
)

// RegionSubject checks the covered area of a component at one entry.
type RegionSubject struct {
	name   string
	at     int64
	region region.Region
}

// NewRegionSubject wraps r for checks. name and at only feed failure facts.
func NewRegionSubject(name string, at int64, r region.Region) *RegionSubject {
	return &RegionSubject{name: name, at: at, region: r}
}

// Region returns the subject's region.
func (s *RegionSubject) Region() region.Region {
	return s.region
}

// CoversAtMost fails if any part of the region lies outside other.
func (s *RegionSubject) CoversAtMost(other region.Region) error {
	if s.region.CoversAtMost(other) {
		return nil
	}
	return s.fail("region covers more than expected", other,
		"Out-of-bounds region", s.region.Subtract(other).String())
}

// CoversAtLeast fails if any part of other lies outside the region.
func (s *RegionSubject) CoversAtLeast(other region.Region) error {
	if s.region.CoversAtLeast(other) {
		return nil
	}
	return s.fail("region covers less than expected", other,
		"Uncovered region", other.Subtract(s.region).String())
}

// CoversExactly fails unless the region and other cover the same area.
func (s *RegionSubject) CoversExactly(other region.Region) error {
	if s.region.CoversExactly(other) {
		return nil
	}
	return s.fail("region is not the expected region", other,
		"Out-of-bounds region", s.region.Subtract(other).String(),
		"Uncovered region", other.Subtract(s.region).String())
}

// IsHigher fails unless the region's top edge is strictly above other's.
func (s *RegionSubject) IsHigher(other region.Region) error {
	if s.region.Bounds().Top < other.Bounds().Top {
		return nil
	}
	return s.fail("region is not higher", other,
		"Actual top", fmt.Sprint(s.region.Bounds().Top),
		"Expected top below", fmt.Sprint(other.Bounds().Top))
}

// IsLower fails unless the region's top edge is strictly below other's.
func (s *RegionSubject) IsLower(other region.Region) error {
	if s.region.Bounds().Top > other.Bounds().Top {
		return nil
	}
	return s.fail("region is not lower", other,
		"Actual top", fmt.Sprint(s.region.Bounds().Top),
		"Expected top above", fmt.Sprint(other.Bounds().Top))
}

func (s *RegionSubject) fail(msg string, other region.Region, extra ...string) *Failure {
	kv := []string{
		"Component", s.name,
		"Timestamp", fmt.Sprint(s.at),
		"Actual", s.region.String(),
		"Expected", other.String(),
	}
	return Fail(msg, append(kv, extra...)...)
}
