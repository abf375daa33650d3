package grpc

import (
	"context"
	"errors"

	"github.com/carusalgiz/shop-cloudfront/services/catalog/internal/repository"
	"github.com/carusalgiz/shop-cloudfront/services/catalog/internal/service"
	"google.golang.org/grpc/codes"
)

func mapErrorCode(err error) codes.Code {
	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		return codes.NotFound
	case errors.Is(err, repository.ErrProductExists):
		return codes.AlreadyExists
	case errors.Is(err, service.ErrInvalidProduct):
		return codes.InvalidArgument
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	default:
		return codes.Internal
	}
}
