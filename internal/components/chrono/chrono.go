package chrono

import "time"

// API is the interface that anything depending on the system clock should use.
type API interface {
	Now() time.Time
	Location() *time.Location
}

type StandardImpl struct {
	location *time.Location
}

// NewStandardImpl loads the named location, an empty name is the local timezone.
func NewStandardImpl(name string) (StandardImpl, error) {
	if name == "" {
		return StandardImpl{location: time.Local}, nil
	}
	location, err := time.LoadLocation(name)
	if err != nil {
		return StandardImpl{}, err
	}
	return StandardImpl{location: location}, nil
}

func (s StandardImpl) Now() time.Time {
	return time.Now().In(s.location)
}

func (s StandardImpl) Location() *time.Location {
	return s.location
}

// StepImpl is a clock for tests, every call to Now advances it by Step.
type StepImpl struct {
	Current time.Time
	Step    time.Duration
}

func (s *StepImpl) Now() time.Time {
	now := s.Current
	s.Current = s.Current.Add(s.Step)
	return now
}

func (s *StepImpl) Location() *time.Location {
	return s.Current.Location()
}
