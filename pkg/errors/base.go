package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// 通用错误 (服务代码 00)
var (
	OK = Register(New(0, http.StatusOK, codes.OK, "Success", "成功"))

	ErrInvalidParam = Register(New(MakeCode(ServiceCommon, CategoryRequest, 1), http.StatusBadRequest, codes.InvalidArgument, "Invalid parameter", "参数无效"))
	ErrBind         = Register(New(MakeCode(ServiceCommon, CategoryRequest, 2), http.StatusBadRequest, codes.InvalidArgument, "Failed to bind request body", "请求体解析失败"))
	ErrNotFound     = Register(New(MakeCode(ServiceCommon, CategoryResource, 1), http.StatusNotFound, codes.NotFound, "Resource not found", "资源不存在"))
	ErrInternal     = Register(New(MakeCode(ServiceCommon, CategoryInternal, 1), http.StatusInternalServerError, codes.Internal, "Internal server error", "服务器内部错误"))
	ErrUnavailable  = Register(New(MakeCode(ServiceCommon, CategoryNetwork, 1), http.StatusServiceUnavailable, codes.Unavailable, "Service unavailable", "服务不可用"))
	ErrTimeout      = Register(New(MakeCode(ServiceCommon, CategoryTimeout, 1), http.StatusGatewayTimeout, codes.DeadlineExceeded, "Request timeout", "请求超时"))
	ErrConfig       = Register(New(MakeCode(ServiceCommon, CategoryConfig, 1), http.StatusInternalServerError, codes.FailedPrecondition, "Invalid configuration", "配置错误"))

	ErrCacheUnavailable = Register(New(MakeCode(ServiceInfraCache, CategoryCache, 1), http.StatusInternalServerError, codes.Unavailable, "Cache unavailable", "缓存不可用"))
)
