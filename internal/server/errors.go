package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/GoSim-25-26J-441/topology-core/internal/topology"
	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
)

// httpStatus maps build errors to HTTP status codes
func httpStatus(err error) int {
	switch {
	case errors.Is(err, topology.ErrInvalidArgument), errors.Is(err, models.ErrInvalidWindow):
		return http.StatusBadRequest
	case errors.Is(err, topology.ErrInvalidTopology):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrQueryTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// grpcCode maps build errors to gRPC status codes
func grpcCode(err error) codes.Code {
	switch {
	case errors.Is(err, topology.ErrInvalidArgument), errors.Is(err, models.ErrInvalidWindow):
		return codes.InvalidArgument
	case errors.Is(err, topology.ErrInvalidTopology):
		return codes.FailedPrecondition
	case errors.Is(err, ErrQueryTimeout), errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	default:
		return codes.Internal
	}
}

// errInvalid marks a request parsing error as an invalid argument
func errInvalid(err error) error {
	return fmt.Errorf("%w: %w", topology.ErrInvalidArgument, err)
}
