package odometry

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInsufficientEncoders = errors.New("not enough drive encoders to predict position")

// PrecheckError is returned by Enable when neither diagonal wheel pair is
// fully sensored.
type PrecheckError struct {
	Sensored PerWheel[bool]
}

func (e *PrecheckError) Error() string {
	var have []string
	for _, w := range Wheels {
		if e.Sensored[w] {
			have = append(have, w.String())
		}
	}
	if len(have) == 0 {
		return fmt.Sprintf("%v: no wheels have a distance sensor", ErrInsufficientEncoders)
	}
	return fmt.Sprintf("%v: only %s have a distance sensor", ErrInsufficientEncoders, strings.Join(have, ", "))
}

func (e *PrecheckError) Unwrap() error {
	return ErrInsufficientEncoders
}
