package waveerrors

import (
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	assert.Equal(t,
		`resource "abc" of type "session" does not exist`,
		(&ErrNotFound{Type: "session", Value: "abc"}).Error())
	assert.Equal(t,
		`resource "abc" does not exist; token fragment too short`,
		(&ErrNotFound{Value: "abc", Message: "token fragment too short"}).Error())
	assert.Equal(t,
		`resource "abc" of type "session" already exists`,
		(&ErrAlreadyExists{Type: "session", Value: "abc"}).Error())
	assert.Equal(t,
		`value "fast" is invalid for field "types"; must be one of automatic, manual`,
		(&ErrInvalidArgument{Name: "types", Value: "fast", Message: "must be one of automatic, manual"}).Error())
}

func TestTypeChecksLookThroughWrapping(t *testing.T) {
	notFound := errors.Wrap(&ErrNotFound{Type: "session", Value: "abc"}, "reading session")
	assert.True(t, IsNotFound(notFound))
	assert.False(t, IsAlreadyExists(notFound))

	var result error
	result = multierror.Append(result, errors.New("foo"), &ErrInvalidArgument{Name: "timeouts", Value: "-1"})
	assert.True(t, IsInvalidArgument(result))
	assert.False(t, IsNotFound(result))

	assert.True(t, IsAlreadyExists(errors.WithMessage(&ErrAlreadyExists{Value: "abc"}, "adding session")))
}
