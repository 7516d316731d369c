package errors

import (
	"errors"
	"strings"
	"testing"

	"github.com/livekit/psrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrArray(t *testing.T) {
	err1 := errors.New("error 1")
	err2 := errors.New("error 2")
	err3 := psrpc.NewErrorf(psrpc.NotFound, "error 3")
	err4 := psrpc.NewErrorf(psrpc.Internal, "error 4")

	errArray := &ErrArray{}
	assert.Nil(t, errArray.ToError())

	errArray.AppendErr(nil)
	assert.Equal(t, 0, errArray.Len())

	errArray.AppendErr(err1)
	assert.Equal(t, psrpc.Unknown, errArray.ToError().Code())
	assert.Equal(t, err1.Error(), errArray.ToError().Error())

	errArray.AppendErr(err2)
	assert.Equal(t, psrpc.Unknown, errArray.ToError().Code())
	assert.Equal(t, 2, len(strings.Split(errArray.ToError().Error(), "\n")))

	errArray.AppendErr(err3)
	assert.Equal(t, psrpc.NotFound, errArray.ToError().Code())
	assert.Equal(t, 3, len(strings.Split(errArray.ToError().Error(), "\n")))

	errArray.AppendErr(err4)
	assert.Equal(t, psrpc.NotFound, errArray.ToError().Code())
	assert.Equal(t, 4, len(strings.Split(errArray.ToError().Error(), "\n")))
}

func TestErrorCodes(t *testing.T) {
	for _, test := range []struct {
		name string
		err  error
		code psrpc.ErrorCode
	}{
		{"rate not in table", ErrRateNotInTable(3), psrpc.NotFound},
		{"rate out of table", ErrRateOutOfTable(32, 1), psrpc.OutOfRange},
		{"malformed timestamp", ErrMalformedTimestamp("1:2"), psrpc.InvalidArgument},
		{"viewer timeout", ErrViewerTimeout("VW_1", "CurrentTime"), psrpc.DeadlineExceeded},
		{"viewer panic", ErrViewerPanic("VW_1", "boom"), psrpc.Internal},
	} {
		t.Run(test.name, func(t *testing.T) {
			var pErr psrpc.Error
			require.True(t, As(test.err, &pErr))
			require.Equal(t, test.code, pErr.Code())
		})
	}
}
