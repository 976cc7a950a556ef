package grpcsvc

import (
	"context"
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/protoadapt"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

// statusFromError переводит доменную ошибку в gRPC status с деталями.
func statusFromError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	switch domain.KindOf(err) {
	case domain.KindNotFound:
		return withDetails(codes.NotFound, err.Error(), &errdetails.ResourceInfo{
			ResourceType: resourceType(err),
			Description:  err.Error(),
		})
	case domain.KindInvalidArgument:
		return withDetails(codes.InvalidArgument, err.Error(), &errdetails.BadRequest{
			FieldViolations: []*errdetails.BadRequest_FieldViolation{{
				Field:       fieldOf(err),
				Description: err.Error(),
			}},
		})
	case domain.KindInsufficientStock:
		violation := &errdetails.PreconditionFailure_Violation{
			Type:        "STOCK",
			Description: err.Error(),
		}
		var stockErr *domain.StockError
		if errors.As(err, &stockErr) {
			violation.Subject = "product/" + stockErr.ProductID
		}
		return withDetails(codes.FailedPrecondition, err.Error(), &errdetails.PreconditionFailure{
			Violations: []*errdetails.PreconditionFailure_Violation{violation},
		})
	case domain.KindConflict:
		return status.Error(codes.Aborted, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func withDetails(code codes.Code, msg string, detail protoadapt.MessageV1) error {
	st := status.New(code, msg)
	if withDetail, err := st.WithDetails(detail); err == nil {
		st = withDetail
	}
	return st.Err()
}

func resourceType(err error) string {
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		return "product"
	case errors.Is(err, domain.ErrCustomerNotFound):
		return "customer"
	case errors.Is(err, domain.ErrEmployeeNotFound):
		return "employee"
	case errors.Is(err, domain.ErrLineNotFound):
		return "invoice_line"
	case errors.Is(err, domain.ErrInvoiceNotFound):
		return "invoice"
	default:
		return "resource"
	}
}

func fieldOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrCustomerRequired):
		return "customer_id"
	case errors.Is(err, domain.ErrInvoiceIDRequired):
		return "invoice_id"
	case errors.Is(err, domain.ErrProductIDRequired):
		return "product_id"
	case errors.Is(err, domain.ErrLinesRequired):
		return "lines"
	case errors.Is(err, domain.ErrLineQtyInvalid):
		return "quantity"
	case errors.Is(err, domain.ErrUnitPriceInvalid):
		return "unit_price"
	case errors.Is(err, domain.ErrDiscountOutOfRange):
		return "percentage"
	case errors.Is(err, domain.ErrStockDeltaZero):
		return "delta"
	case errors.Is(err, domain.ErrStockPolicyInvalid):
		return "policy"
	case errors.Is(err, domain.ErrSortDirectionInvalid):
		return "direction"
	default:
		return ""
	}
}
