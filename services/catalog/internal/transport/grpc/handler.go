package grpc

import (
	"context"

	"github.com/carusalgiz/shop-cloudfront/pkg/mylogger"
	pb "github.com/carusalgiz/shop-cloudfront/proto/catalog"
	"github.com/carusalgiz/shop-cloudfront/services/catalog/internal/domain"
	"github.com/carusalgiz/shop-cloudfront/services/catalog/internal/service"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type ProductHandler struct {
	pb.UnimplementedCatalogServiceServer
	service service.ProductService
	logger  *zap.Logger
}

func NewProductHandler(service service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{service: service, logger: logger}
}

func toProto(p *domain.Product) *pb.Product {
	return &pb.Product{
		Id:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Price:       p.Price.StringFixed(2),
		Count:       p.Count,
	}
}

func (h *ProductHandler) GetProduct(ctx context.Context, req *pb.GetProductRequest) (*pb.GetProductResponse, error) {
	if req.Id == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	res, err := h.service.FindByID(ctx, req.Id)
	if err != nil {
		code := mapErrorCode(err)

		mylogger.Error(
			ctx,
			h.logger,
			"get product failed",
			zap.String("method", "GetProduct"),
			zap.String("product_id", req.Id),
			zap.String("status_code", code.String()),
			zap.Error(err),
		)

		return nil, status.Error(code, code.String())
	}

	return &pb.GetProductResponse{
		Product: toProto(res),
	}, nil
}

func (h *ProductHandler) ListProducts(ctx context.Context, req *pb.ListProductsRequest) (*pb.ListProductsResponse, error) {
	list, total, err := h.service.List(ctx, req.Limit, req.Offset, req.Search)
	if err != nil {
		code := mapErrorCode(err)

		mylogger.Error(
			ctx,
			h.logger,
			"list products failed",
			zap.String("method", "ListProducts"),
			zap.Int64("offset", req.Offset),
			zap.Int64("limit", req.Limit),
			zap.String("search", req.Search),
			zap.String("status_code", code.String()),
			zap.Error(err),
		)

		return nil, status.Error(code, code.String())
	}

	products := make([]*pb.Product, 0, len(list))
	for i := range list {
		products = append(products, toProto(&list[i]))
	}

	return &pb.ListProductsResponse{
		Products:   products,
		TotalCount: total,
	}, nil
}

func (h *ProductHandler) CreateProduct(ctx context.Context, req *pb.CreateProductRequest) (*pb.CreateProductResponse, error) {
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "price must be a decimal number")
	}

	product := &domain.Product{}
	product.ID = req.Id
	product.Title = req.Title
	product.Description = req.Description
	product.Price = price
	product.Count = req.Count

	if err := h.service.Create(ctx, product); err != nil {
		code := mapErrorCode(err)

		mylogger.Error(
			ctx,
			h.logger,
			"create product failed",
			zap.String("method", "CreateProduct"),
			zap.String("product_id", req.Id),
			zap.String("title", req.Title),
			zap.String("price", req.Price),
			zap.Int64("count", req.Count),
			zap.String("status_code", code.String()),
			zap.Error(err),
		)

		if code == codes.InvalidArgument {
			return nil, status.Error(code, err.Error())
		}
		return nil, status.Error(code, code.String())
	}

	return &pb.CreateProductResponse{
		Id: product.ID,
	}, nil
}

func toUpdateInput(req *pb.UpdateProductRequest) (*domain.UpdateProductInput, error) {
	input := &domain.UpdateProductInput{
		Title:       req.Title,
		Description: req.Description,
		Count:       req.Count,
	}

	if req.Price != nil {
		price, err := decimal.NewFromString(*req.Price)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "price must be a decimal number")
		}
		input.Price = &price
	}

	if input.Empty() {
		return nil, status.Error(codes.InvalidArgument, "nothing to update")
	}

	return input, nil
}

func (h *ProductHandler) UpdateProduct(ctx context.Context, req *pb.UpdateProductRequest) (*pb.UpdateProductResponse, error) {
	if req.Id == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	input, err := toUpdateInput(req)
	if err != nil {
		return nil, err
	}

	if err := h.service.Update(ctx, req.Id, input); err != nil {
		code := mapErrorCode(err)

		mylogger.Error(
			ctx,
			h.logger,
			"update product failed",
			zap.String("method", "UpdateProduct"),
			zap.String("product_id", req.Id),
			zap.String("status_code", code.String()),
			zap.Error(err),
		)

		if code == codes.InvalidArgument {
			return nil, status.Error(code, err.Error())
		}
		return nil, status.Error(code, code.String())
	}

	res, err := h.service.FindByID(ctx, req.Id)
	if err != nil {
		code := mapErrorCode(err)

		mylogger.Error(
			ctx,
			h.logger,
			"reading updated product failed",
			zap.String("method", "UpdateProduct"),
			zap.String("product_id", req.Id),
			zap.String("status_code", code.String()),
			zap.Error(err),
		)

		return nil, status.Error(code, code.String())
	}

	return &pb.UpdateProductResponse{
		Product: toProto(res),
	}, nil
}

func (h *ProductHandler) DeleteProduct(ctx context.Context, req *pb.DeleteProductRequest) (*pb.DeleteProductResponse, error) {
	if req.Id == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	if err := h.service.Delete(ctx, req.Id); err != nil {
		code := mapErrorCode(err)

		mylogger.Error(
			ctx,
			h.logger,
			"delete product failed",
			zap.String("method", "DeleteProduct"),
			zap.String("product_id", req.Id),
			zap.String("status_code", code.String()),
			zap.Error(err),
		)

		return nil, status.Error(code, code.String())
	}

	return &pb.DeleteProductResponse{}, nil
}
